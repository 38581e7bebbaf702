package forum

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS questions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	details TEXT NOT NULL,
	author TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS answers (
	id TEXT PRIMARY KEY,
	question_id TEXT NOT NULL,
	details TEXT NOT NULL,
	author TEXT NOT NULL,
	likes INTEGER NOT NULL DEFAULT 0 CHECK(likes >= 0),
	created_at INTEGER NOT NULL,
	FOREIGN KEY (question_id) REFERENCES questions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id, created_at);
`

// SQLiteStore persists the forum in a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, logger *zap.Logger, path string) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open forum database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate forum database: %w", err)
	}

	logger.Info("opened forum database",
		zap.String("op", "forum.OpenSQLite"),
		zap.String("path", path),
	)
	return &SQLiteStore{db: db, logger: logger}, nil
}

// ListQuestions returns all questions newest first, answers oldest first.
func (s *SQLiteStore) ListQuestions(ctx context.Context) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, details, author, tags, created_at FROM questions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer s.closeRows(rows, "forum.ListQuestions")

	questions := make([]Question, 0)
	index := make(map[string]int)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	answers, err := s.queryAnswers(ctx,
		`SELECT id, question_id, details, author, likes, created_at FROM answers ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	for _, a := range answers {
		if i, ok := index[a.QuestionID]; ok {
			questions[i].Answers = append(questions[i].Answers, a)
		}
	}
	return questions, nil
}

// GetQuestion returns one question with its answers.
func (s *SQLiteStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, details, author, tags, created_at FROM questions WHERE id = ?`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, fmt.Errorf("question %s: %w", id, ErrQuestionNotFound)
	}
	if err != nil {
		return Question{}, err
	}

	answers, err := s.queryAnswers(ctx,
		`SELECT id, question_id, details, author, likes, created_at FROM answers WHERE question_id = ? ORDER BY created_at, rowid`, id)
	if err != nil {
		return Question{}, err
	}
	q.Answers = answers
	return q, nil
}

// CreateQuestion inserts q without its answers.
func (s *SQLiteStore) CreateQuestion(ctx context.Context, q Question) error {
	tags, err := json.Marshal(nonNil(q.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO questions (id, title, details, author, tags, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.Title, q.Details, q.Author, string(tags), q.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
	}
	return nil
}

// AddAnswer inserts a under its question.
func (s *SQLiteStore) AddAnswer(ctx context.Context, a Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := questionExists(ctx, tx, a.QuestionID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO answers (id, question_id, details, author, likes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.QuestionID, a.Details, a.Author, a.Likes, a.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert answer %s: %w", a.ID, err)
	}
	return tx.Commit()
}

// LikeAnswer increments an answer's likes and returns the new count.
func (s *SQLiteStore) LikeAnswer(ctx context.Context, questionID, answerID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := questionExists(ctx, tx, questionID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE answers SET likes = likes + 1 WHERE id = ? AND question_id = ?`, answerID, questionID)
	if err != nil {
		return 0, fmt.Errorf("failed to like answer %s: %w", answerID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, fmt.Errorf("answer %s: %w", answerID, ErrAnswerNotFound)
	}

	var likes int
	if err := tx.QueryRowContext(ctx, `SELECT likes FROM answers WHERE id = ?`, answerID).Scan(&likes); err != nil {
		return 0, fmt.Errorf("failed to read likes for answer %s: %w", answerID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return likes, nil
}

// Count returns the number of questions.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row scanner) (Question, error) {
	var (
		q       Question
		tags    string
		created int64
	)
	if err := row.Scan(&q.ID, &q.Title, &q.Details, &q.Author, &tags, &created); err != nil {
		return Question{}, err
	}
	if err := json.Unmarshal([]byte(tags), &q.Tags); err != nil {
		return Question{}, fmt.Errorf("question %s has malformed tags: %w", q.ID, err)
	}
	q.Tags = nonNil(q.Tags)
	q.CreatedAt = time.Unix(0, created).UTC()
	q.Answers = []Answer{}
	return q, nil
}

func (s *SQLiteStore) queryAnswers(ctx context.Context, query string, args ...any) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer s.closeRows(rows, "forum.queryAnswers")

	answers := make([]Answer, 0)
	for rows.Next() {
		var (
			a       Answer
			created int64
		)
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Details, &a.Author, &a.Likes, &created); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		a.CreatedAt = time.Unix(0, created).UTC()
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	return answers, nil
}

func questionExists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM questions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("question %s: %w", id, ErrQuestionNotFound)
	}
	return err
}

func (s *SQLiteStore) closeRows(rows *sql.Rows, op string) {
	if err := rows.Close(); err != nil {
		s.logger.Warn("failed to close rows",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
