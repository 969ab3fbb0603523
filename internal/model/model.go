package model

import (
	"fmt"
	"strings"
	"time"
)

// Kind represents the type of a question block.
type Kind string

const (
	// KindMultipleChoice is a question with an answerlist of alternatives.
	KindMultipleChoice Kind = "multiple_choice"
	// KindTrueFalse is a true/false question; its alternatives are never shuffled.
	KindTrueFalse Kind = "true_false"
)

// Marker tags an answer item as the correct or an incorrect alternative.
type Marker string

const (
	MarkerCorrect   Marker = "correct"
	MarkerIncorrect Marker = "incorrect"
)

// LaTeX returns the item macro that serializes this marker (\di or \ti).
func (m Marker) LaTeX() string {
	if m == MarkerCorrect {
		return `\di`
	}
	return `\ti`
}

// AnswerItem is one alternative inside an answerlist. Marker and content form
// an atomic record: reordering always moves them together, so the answer key
// can never detach from its text.
type AnswerItem struct {
	Marker  Marker
	Indent  string // leading whitespace before the item macro, kept for re-serialization
	Content string // everything after the macro, including an optional [label]
}

// Question is one delimited question block from the base document.
type Question struct {
	ID   string // identifier from the opening delimiter, diagnostics only
	Kind Kind
	Raw  string // original block text; also the rendered form until answers are permuted

	// ListHead and ListTail are the parts of Raw before and after the
	// answer-item region. Empty when no answerlist was detected.
	ListHead string
	ListTail string
	Answers  []AnswerItem

	// Malformed marks a block that opened without a matching close. Such
	// blocks are kept verbatim in place and excluded from shuffling.
	Malformed bool
}

// CorrectPosition returns the 0-based index of the correct alternative, or -1
// for true/false questions, malformed blocks, or blocks without an answerlist.
func (q Question) CorrectPosition() int {
	if q.Malformed || q.Kind != KindMultipleChoice {
		return -1
	}
	for i, item := range q.Answers {
		if item.Marker == MarkerCorrect {
			return i
		}
	}
	return -1
}

// KeyLetter returns the answer-key symbol (A, B, C, ...) for the question, or
// empty when the question carries no key position.
func (q Question) KeyLetter() string {
	pos := q.CorrectPosition()
	if pos < 0 || pos >= 26 {
		return ""
	}
	return string(rune('A' + pos))
}

// Shufflable reports whether the question participates in order permutation.
func (q Question) Shufflable() bool {
	return !q.Malformed
}

// WithAnswers returns a copy of the question with the given answer order and
// its text rebuilt around the new order. The head and tail of the block are
// reproduced verbatim; each item keeps its own indentation and content.
func (q Question) WithAnswers(items []AnswerItem) Question {
	out := q
	out.Answers = items
	if q.ListHead == "" && q.ListTail == "" {
		return out
	}
	var b strings.Builder
	b.WriteString(q.ListHead)
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(item.Indent)
		b.WriteString(item.Marker.LaTeX())
		b.WriteString(item.Content)
	}
	b.WriteString(q.ListTail)
	out.Raw = b.String()
	return out
}

// Document is the parsed base file: header, ordered question blocks, the
// verbatim text between blocks, and the footer.
type Document struct {
	Header string
	// Separators[i] is the text between Questions[i] and Questions[i+1].
	// Separators stay positional: shuffling moves questions, not the gaps.
	Separators []string
	Questions  []Question
	Footer     string
}

// Render assembles a document text from the given question order. The slice
// must contain exactly one entry per original question. With the original
// order and unmodified questions the result is byte-identical to the input.
func (d *Document) Render(qs []Question) string {
	var b strings.Builder
	b.WriteString(d.Header)
	for i, q := range qs {
		b.WriteString(q.Raw)
		if i < len(d.Separators) {
			b.WriteString(d.Separators[i])
		}
	}
	b.WriteString(d.Footer)
	return b.String()
}

// CountKinds returns the number of multiple-choice and true/false questions.
func (d *Document) CountKinds() (mc, tf int) {
	for _, q := range d.Questions {
		switch q.Kind {
		case KindTrueFalse:
			tf++
		default:
			mc++
		}
	}
	return mc, tf
}

// DefaultMaxAttempts bounds the resampling loop that enforces the
// consecutive-key constraint.
const DefaultMaxAttempts = 2000

// RunConfig holds the parameters of one generation run. It is immutable and
// shared by every version of the run.
type RunConfig struct {
	NumVersions      int
	SuffixStart      rune // suffix letter of the first generated version
	ShuffleQuestions bool
	ShuffleAnswers   bool
	MaxConsecutive   int // longest allowed run of identical key letters
	MaxAttempts      int
	Seed             int64 // 0 means time-seeded
}

// Validate checks the configuration before any generation starts.
func (c RunConfig) Validate() error {
	if c.NumVersions < 1 {
		return fmt.Errorf("number of versions must be >= 1, got %d", c.NumVersions)
	}
	if c.MaxConsecutive < 1 {
		return fmt.Errorf("max consecutive identical keys must be >= 1, got %d", c.MaxConsecutive)
	}
	if c.SuffixStart < 'A' || c.SuffixStart > 'Z' {
		return fmt.Errorf("suffix letter must be A-Z, got %q", string(c.SuffixStart))
	}
	if c.SuffixStart+rune(c.NumVersions-1) > 'Z' {
		return fmt.Errorf("suffix letters run past Z: %d versions starting at %q",
			c.NumVersions, string(c.SuffixStart))
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1, got %d", c.MaxAttempts)
	}
	return nil
}

// ShuffleResult is the outcome of generating one version.
type ShuffleResult struct {
	DocumentText        string
	AttemptsUsed        int
	ConstraintSatisfied bool
	// AnswerKey holds one symbol per question in output order; questions
	// without a key position (true/false, malformed) appear as "-".
	AnswerKey []string
}

// Key returns the answer key as a compact string, e.g. "CABD" or "CA-BD".
func (r ShuffleResult) Key() string {
	return strings.Join(r.AnswerKey, "")
}

// Version pairs a generated document with its suffix letter.
type Version struct {
	Suffix string
	ShuffleResult
}

// Run is a recorded generation run.
type Run struct {
	ID               int64
	Source           string
	NumVersions      int
	ShuffleQuestions bool
	ShuffleAnswers   bool
	MaxConsecutive   int
	Seed             int64
	QuestionCount    int
	MCCount          int
	TFCount          int
	CreatedAt        time.Time
}

// VersionRecord is one generated version as persisted in the run history.
type VersionRecord struct {
	ID                  int64
	RunID               int64
	Suffix              string
	OutputPath          string
	Attempts            int
	ConstraintSatisfied bool
	AnswerKey           string
}
