// Package shuffle generates randomized exam versions: it permutes answer
// alternatives and question order, and bounds how often the same answer-key
// letter repeats consecutively by resampling up to a configured cap.
package shuffle

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/wyllianbs/QuizRandomShuffle/internal/model"
)

// Shuffler produces shuffled variants of a parsed document. Each call to
// Shuffle works on its own copy of the question list; the document itself is
// never mutated.
type Shuffler struct {
	cfg model.RunConfig
	rng *rand.Rand
}

// New creates a Shuffler. A nil rng gets a time-seeded source; tests pass a
// fixed-seed generator for reproducible permutations.
func New(cfg model.RunConfig, rng *rand.Rand) *Shuffler {
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = model.DefaultMaxAttempts
	}
	return &Shuffler{cfg: cfg, rng: rng}
}

// Shuffle generates one version. When the consecutive-key constraint cannot
// be satisfied within the attempt cap, the last attempt is returned with
// ConstraintSatisfied set to false; this is a reported condition, not an
// error.
func (s *Shuffler) Shuffle(doc *model.Document) model.ShuffleResult {
	randomized := s.cfg.ShuffleQuestions || s.cfg.ShuffleAnswers

	var (
		qs        []model.Question
		key       []string
		attempts  int
		satisfied = true
	)
	for {
		attempts++
		qs = s.arrange(doc.Questions)
		key = AnswerKey(qs)
		// Without randomness there is nothing to resample; the fixed
		// order stands and the constraint check is skipped.
		if !randomized {
			break
		}
		if RunWithin(key, s.cfg.MaxConsecutive) {
			satisfied = true
			break
		}
		satisfied = false
		if attempts >= s.cfg.MaxAttempts {
			break
		}
	}

	if attempts > 1 && satisfied {
		slog.Debug("constraint satisfied after resampling", "attempts", attempts)
	}

	return model.ShuffleResult{
		DocumentText:        doc.Render(qs),
		AttemptsUsed:        attempts,
		ConstraintSatisfied: satisfied,
		AnswerKey:           key,
	}
}

// arrange builds one candidate ordering: fresh answer permutations for every
// multiple-choice question, then a permutation of the question order.
// Malformed blocks are pinned to their original positions.
func (s *Shuffler) arrange(questions []model.Question) []model.Question {
	qs := make([]model.Question, len(questions))
	copy(qs, questions)

	if s.cfg.ShuffleAnswers {
		for i, q := range qs {
			if q.Malformed || q.Kind != model.KindMultipleChoice || len(q.Answers) < 2 {
				continue
			}
			perm := s.rng.Perm(len(q.Answers))
			items := make([]model.AnswerItem, len(q.Answers))
			for j, p := range perm {
				items[j] = q.Answers[p]
			}
			qs[i] = q.WithAnswers(items)
		}
	}

	if s.cfg.ShuffleQuestions {
		var movable []int
		for i, q := range qs {
			if q.Shufflable() {
				movable = append(movable, i)
			}
		}
		picked := make([]model.Question, len(movable))
		for i, idx := range movable {
			picked[i] = qs[idx]
		}
		s.rng.Shuffle(len(picked), func(i, j int) {
			picked[i], picked[j] = picked[j], picked[i]
		})
		for i, idx := range movable {
			qs[idx] = picked[i]
		}
	}

	return qs
}

// AnswerKey returns the key symbol for each question in order. Questions
// without a key position (true/false, malformed) contribute "-".
func AnswerKey(qs []model.Question) []string {
	key := make([]string, len(qs))
	for i, q := range qs {
		letter := q.KeyLetter()
		if letter == "" {
			letter = "-"
		}
		key[i] = letter
	}
	return key
}

// RunWithin reports whether no run of identical key letters exceeds limit.
// Entries without a key position reset the run in progress.
func RunWithin(key []string, limit int) bool {
	run := 0
	last := ""
	for _, k := range key {
		if k == "-" {
			run = 0
			last = ""
			continue
		}
		if k == last {
			run++
		} else {
			run = 1
			last = k
		}
		if run > limit {
			return false
		}
	}
	return true
}

// GenerateVersions runs the shuffler once per requested version and assigns
// suffix letters sequentially from the configured start. Configuration errors
// abort before any version is generated.
func GenerateVersions(doc *model.Document, cfg model.RunConfig, rng *rand.Rand) ([]model.Version, error) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = model.DefaultMaxAttempts
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := New(cfg, rng)
	versions := make([]model.Version, 0, cfg.NumVersions)
	for v := 0; v < cfg.NumVersions; v++ {
		suffix := string(cfg.SuffixStart + rune(v))
		res := s.Shuffle(doc)
		if !res.ConstraintSatisfied {
			slog.Warn("consecutive-key constraint not satisfied, using last attempt",
				"suffix", suffix, "attempts", res.AttemptsUsed)
		}
		versions = append(versions, model.Version{Suffix: suffix, ShuffleResult: res})
	}
	return versions, nil
}
