package store

import (
	"fmt"
	"time"

	"github.com/wyllianbs/QuizRandomShuffle/internal/model"
)

// ExportHistory builds an export-ready view of every recorded run with its
// versions and answer keys.
func (s *Store) ExportHistory() (model.HistoryExport, error) {
	runs, err := s.ListRuns()
	if err != nil {
		return model.HistoryExport{}, fmt.Errorf("list runs: %w", err)
	}

	export := model.HistoryExport{ExportedAt: time.Now()}
	for _, r := range runs {
		versions, err := s.VersionsForRun(r.ID)
		if err != nil {
			return model.HistoryExport{}, fmt.Errorf("versions for run %d: %w", r.ID, err)
		}

		var vrs []model.VersionResult
		for _, v := range versions {
			vrs = append(vrs, model.VersionResult{
				Suffix:              v.Suffix,
				OutputPath:          v.OutputPath,
				Attempts:            v.Attempts,
				ConstraintSatisfied: v.ConstraintSatisfied,
				AnswerKey:           v.AnswerKey,
			})
		}

		export.Runs = append(export.Runs, model.RunResult{
			Source:           r.Source,
			NumVersions:      r.NumVersions,
			ShuffleQuestions: r.ShuffleQuestions,
			ShuffleAnswers:   r.ShuffleAnswers,
			MaxConsecutive:   r.MaxConsecutive,
			Seed:             r.Seed,
			QuestionCount:    r.QuestionCount,
			MCCount:          r.MCCount,
			TFCount:          r.TFCount,
			CreatedAt:        r.CreatedAt,
			Versions:         vrs,
		})
	}

	return export, nil
}
