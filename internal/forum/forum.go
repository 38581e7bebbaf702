// Package forum implements the community question and answer board.
package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/emi-calculator/pkg/constants"
	"go.uber.org/zap"
)

// Sentinel errors returned by stores and the service.
var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrAnswerNotFound   = errors.New("answer not found")
)

// Question is a community question and its answers.
type Question struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Details   string    `json:"details"`
	Author    string    `json:"author"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	Answers   []Answer  `json:"answers"`
}

// Answer is a reply to a question.
type Answer struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"questionId"`
	Details    string    `json:"details"`
	Author     string    `json:"author"`
	Likes      int       `json:"likes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store persists questions and answers. ListQuestions returns the newest
// question first with each question's answers oldest first.
type Store interface {
	ListQuestions(ctx context.Context) ([]Question, error)
	GetQuestion(ctx context.Context, id string) (Question, error)
	CreateQuestion(ctx context.Context, q Question) error
	AddAnswer(ctx context.Context, a Answer) error
	LikeAnswer(ctx context.Context, questionID, answerID string) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// OpenStore creates the store named by driver. path is only used by the
// sqlite driver.
func OpenStore(ctx context.Context, logger *zap.Logger, driver, path string) (Store, error) {
	switch driver {
	case "", constants.ForumDriverMemory:
		return NewMemoryStore(), nil
	case constants.ForumDriverSQLite:
		store, err := OpenSQLite(ctx, logger, path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported forum driver %q", driver)
	}
}

// FieldError describes one rejected field of a post.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of a post.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "invalid post: " + strings.Join(msgs, "; ")
}
