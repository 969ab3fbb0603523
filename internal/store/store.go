package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/wyllianbs/QuizRandomShuffle/internal/model"

	_ "modernc.org/sqlite"
)

// Store persists the generation run history: one row per run plus one row per
// generated version with its answer key.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		num_versions INTEGER NOT NULL,
		shuffle_questions INTEGER NOT NULL DEFAULT 1,
		shuffle_answers INTEGER NOT NULL DEFAULT 1,
		max_consecutive INTEGER NOT NULL,
		seed INTEGER NOT NULL DEFAULT 0,
		question_count INTEGER NOT NULL DEFAULT 0,
		mc_count INTEGER NOT NULL DEFAULT 0,
		tf_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		suffix TEXT NOT NULL,
		output_path TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL,
		constraint_satisfied INTEGER NOT NULL,
		answer_key TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores a run together with its versions in one transaction.
func (s *Store) RecordRun(run model.Run, versions []model.VersionRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO runs (source, num_versions, shuffle_questions, shuffle_answers,
		                   max_consecutive, seed, question_count, mc_count, tf_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Source, run.NumVersions, run.ShuffleQuestions, run.ShuffleAnswers,
		run.MaxConsecutive, run.Seed, run.QuestionCount, run.MCCount, run.TFCount, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, v := range versions {
		_, err := tx.Exec(
			`INSERT INTO versions (run_id, suffix, output_path, attempts, constraint_satisfied, answer_key)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			runID, v.Suffix, v.OutputPath, v.Attempts, v.ConstraintSatisfied, v.AnswerKey,
		)
		if err != nil {
			return 0, err
		}
	}

	return runID, tx.Commit()
}

// GetRun returns a run by ID.
func (s *Store) GetRun(id int64) (model.Run, error) {
	var r model.Run
	err := s.db.QueryRow(
		`SELECT id, source, num_versions, shuffle_questions, shuffle_answers,
		        max_consecutive, seed, question_count, mc_count, tf_count, created_at
		 FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Source, &r.NumVersions, &r.ShuffleQuestions, &r.ShuffleAnswers,
		&r.MaxConsecutive, &r.Seed, &r.QuestionCount, &r.MCCount, &r.TFCount, &r.CreatedAt)
	return r, err
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]model.Run, error) {
	rows, err := s.db.Query(
		`SELECT id, source, num_versions, shuffle_questions, shuffle_answers,
		        max_consecutive, seed, question_count, mc_count, tf_count, created_at
		 FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.Source, &r.NumVersions, &r.ShuffleQuestions, &r.ShuffleAnswers,
			&r.MaxConsecutive, &r.Seed, &r.QuestionCount, &r.MCCount, &r.TFCount, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// VersionsForRun returns the versions of a run ordered by suffix.
func (s *Store) VersionsForRun(runID int64) ([]model.VersionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, suffix, output_path, attempts, constraint_satisfied, answer_key
		 FROM versions WHERE run_id = ? ORDER BY suffix`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var versions []model.VersionRecord
	for rows.Next() {
		var v model.VersionRecord
		if err := rows.Scan(&v.ID, &v.RunID, &v.Suffix, &v.OutputPath,
			&v.Attempts, &v.ConstraintSatisfied, &v.AnswerKey); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// RunCount returns the number of recorded runs.
func (s *Store) RunCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}
