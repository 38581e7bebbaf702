package forum

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps the forum in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	questions map[string]*Question
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{questions: make(map[string]*Question)}
}

// ListQuestions returns copies of all questions, newest first.
func (s *MemoryStore) ListQuestions(ctx context.Context) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, copyQuestion(q))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetQuestion returns a copy of one question.
func (s *MemoryStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	if err := ctx.Err(); err != nil {
		return Question{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("question %s: %w", id, ErrQuestionNotFound)
	}
	return copyQuestion(q), nil
}

// CreateQuestion stores q. Its ID must be unique.
func (s *MemoryStore) CreateQuestion(ctx context.Context, q Question) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.questions[q.ID]; exists {
		return fmt.Errorf("question %s already exists", q.ID)
	}
	stored := copyQuestion(&q)
	s.questions[q.ID] = &stored
	return nil
}

// AddAnswer appends a to its question.
func (s *MemoryStore) AddAnswer(ctx context.Context, a Answer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[a.QuestionID]
	if !ok {
		return fmt.Errorf("question %s: %w", a.QuestionID, ErrQuestionNotFound)
	}
	q.Answers = append(q.Answers, a)
	return nil
}

// LikeAnswer increments an answer's likes and returns the new count.
func (s *MemoryStore) LikeAnswer(ctx context.Context, questionID, answerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[questionID]
	if !ok {
		return 0, fmt.Errorf("question %s: %w", questionID, ErrQuestionNotFound)
	}
	for i := range q.Answers {
		if q.Answers[i].ID == answerID {
			q.Answers[i].Likes++
			return q.Answers[i].Likes, nil
		}
	}
	return 0, fmt.Errorf("answer %s: %w", answerID, ErrAnswerNotFound)
}

// Count returns the number of questions.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func copyQuestion(q *Question) Question {
	out := *q
	out.Tags = append([]string{}, q.Tags...)
	out.Answers = append([]Answer{}, q.Answers...)
	return out
}
