package model

import "time"

// HistoryExport is the top-level JSON structure for run history export.
type HistoryExport struct {
	ExportedAt time.Time   `json:"exported_at"`
	Runs       []RunResult `json:"runs"`
}

// RunResult holds one recorded run with its generated versions.
type RunResult struct {
	Source           string          `json:"source"`
	NumVersions      int             `json:"num_versions"`
	ShuffleQuestions bool            `json:"shuffle_questions"`
	ShuffleAnswers   bool            `json:"shuffle_answers"`
	MaxConsecutive   int             `json:"max_consecutive"`
	Seed             int64           `json:"seed"`
	QuestionCount    int             `json:"question_count"`
	MCCount          int             `json:"multiple_choice"`
	TFCount          int             `json:"true_false"`
	CreatedAt        time.Time       `json:"created_at"`
	Versions         []VersionResult `json:"versions"`
}

// VersionResult holds per-version export data, including the answer key so an
// instructor can grade any variant from the history alone.
type VersionResult struct {
	Suffix              string `json:"suffix"`
	OutputPath          string `json:"output_path,omitempty"`
	Attempts            int    `json:"attempts"`
	ConstraintSatisfied bool   `json:"constraint_satisfied"`
	AnswerKey           string `json:"answer_key"`
}
