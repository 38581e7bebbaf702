package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/iwvelando/emi-calculator/pkg/constants"
	"github.com/iwvelando/emi-calculator/pkg/validation"
	"go.uber.org/zap"
)

// Post length limits.
const (
	MinTitleLength   = 10
	MaxTitleLength   = 200
	MinDetailsLength = 20
	MaxDetailsLength = 5000
)

// NewQuestion is a question as submitted by a user. Tags is comma-separated.
type NewQuestion struct {
	Title   string `json:"title"`
	Details string `json:"details"`
	Tags    string `json:"tags"`
	Author  string `json:"author,omitempty"`
}

// NewAnswer is an answer as submitted by a user.
type NewAnswer struct {
	Details string `json:"details"`
	Author  string `json:"author,omitempty"`
}

// Service applies the forum's posting rules on top of a Store.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates a forum service backed by store.
func NewService(logger *zap.Logger, store Store) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// List returns every question, newest first.
func (s *Service) List(ctx context.Context) ([]Question, error) {
	return s.store.ListQuestions(ctx)
}

// Get returns one question.
func (s *Service) Get(ctx context.Context, id string) (Question, error) {
	return s.store.GetQuestion(ctx, id)
}

// Ask validates and stores a new question.
func (s *Service) Ask(ctx context.Context, in NewQuestion) (Question, error) {
	var fields []FieldError
	if err := validation.ValidateLength(in.Title, MinTitleLength, MaxTitleLength); err != nil {
		fields = append(fields, FieldError{Field: "title", Message: "Title " + err.Error() + "."})
	}
	if err := validation.ValidateLength(in.Details, MinDetailsLength, MaxDetailsLength); err != nil {
		fields = append(fields, FieldError{Field: "details", Message: "Details " + err.Error() + "."})
	}
	if len(fields) > 0 {
		return Question{}, &ValidationError{Fields: fields}
	}

	q := Question{
		ID:        s.newID(),
		Title:     strings.TrimSpace(in.Title),
		Details:   strings.TrimSpace(in.Details),
		Author:    authorOr(in.Author, constants.AnonymousAuthor),
		Tags:      validation.SplitTags(in.Tags),
		CreatedAt: s.now(),
		Answers:   []Answer{},
	}
	if err := s.store.CreateQuestion(ctx, q); err != nil {
		return Question{}, err
	}

	s.logger.Info("question posted",
		zap.String("op", "forum.Ask"),
		zap.String("questionID", q.ID),
		zap.Int("tags", len(q.Tags)),
	)
	return q, nil
}

// Answer validates and stores an answer to an existing question.
func (s *Service) Answer(ctx context.Context, questionID string, in NewAnswer) (Answer, error) {
	details := strings.TrimSpace(in.Details)
	if details == "" {
		return Answer{}, &ValidationError{Fields: []FieldError{
			{Field: "details", Message: "Answer must not be empty."},
		}}
	}
	if utf8.RuneCountInString(details) > MaxDetailsLength {
		return Answer{}, &ValidationError{Fields: []FieldError{
			{Field: "details", Message: fmt.Sprintf("Answer must not exceed %d characters.", MaxDetailsLength)},
		}}
	}

	a := Answer{
		ID:         s.newID(),
		QuestionID: questionID,
		Details:    details,
		Author:     authorOr(in.Author, constants.CommunityAuthor),
		Likes:      0,
		CreatedAt:  s.now(),
	}
	if err := s.store.AddAnswer(ctx, a); err != nil {
		return Answer{}, err
	}

	s.logger.Info("answer posted",
		zap.String("op", "forum.Answer"),
		zap.String("questionID", questionID),
		zap.String("answerID", a.ID),
	)
	return a, nil
}

// Like adds one like to an answer and returns its new total.
func (s *Service) Like(ctx context.Context, questionID, answerID string) (int, error) {
	likes, err := s.store.LikeAnswer(ctx, questionID, answerID)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("answer liked",
		zap.String("op", "forum.Like"),
		zap.String("answerID", answerID),
		zap.Int("likes", likes),
	)
	return likes, nil
}

// Seed inserts the starter questions when the store is empty. It reports
// whether anything was inserted.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.logger.Debug("forum already populated, skipping seed",
			zap.String("op", "forum.Seed"),
			zap.Int("questions", n),
		)
		return false, nil
	}

	for _, q := range starterQuestions() {
		answers := q.Answers
		q.Answers = []Answer{}
		if err := s.store.CreateQuestion(ctx, q); err != nil {
			return false, fmt.Errorf("failed to seed question %s: %w", q.ID, err)
		}
		for _, a := range answers {
			if err := s.store.AddAnswer(ctx, a); err != nil {
				return false, fmt.Errorf("failed to seed answer %s: %w", a.ID, err)
			}
		}
	}

	s.logger.Info("seeded forum",
		zap.String("op", "forum.Seed"),
		zap.Int("questions", len(starterQuestions())),
	)
	return true, nil
}

// IsNotFound reports whether err means a question or answer does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuestionNotFound) || errors.Is(err, ErrAnswerNotFound)
}

func authorOr(author, fallback string) string {
	if trimmed := strings.TrimSpace(author); trimmed != "" {
		return trimmed
	}
	return fallback
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func starterQuestions() []Question {
	return []Question{
		{
			ID:        "1",
			Title:     "Best home loan for salaried employees in 2024?",
			Details:   "I am looking for a home loan with a good interest rate and minimal processing fees. Any recommendations for someone salaried in a metro city? My annual income is 12 LPA and I have a good credit score.",
			Author:    "Amit S.",
			Tags:      []string{"home loan", "salaried", "interest rates"},
			CreatedAt: day(2024, time.July, 20),
			Answers: []Answer{
				{ID: "a1-1", QuestionID: "1", Details: "Consider checking out SBI MaxGain. It usually has competitive rates for salaried individuals.", Author: "Deepa L.", Likes: 5, CreatedAt: day(2024, time.July, 21)},
				{ID: "a1-2", QuestionID: "1", Details: "HDFC also has good options, especially if you have an existing relationship with them.", Author: "Rajiv B.", Likes: 2, CreatedAt: day(2024, time.July, 22)},
			},
		},
		{
			ID:        "2",
			Title:     "How to improve credit score for a personal loan?",
			Details:   "My credit score is around 650. What are some quick ways to improve it before applying for a personal loan for a medical emergency? I need the loan within a month.",
			Author:    "Priya K.",
			Tags:      []string{"credit score", "personal loan", "tips"},
			CreatedAt: day(2024, time.July, 18),
			Answers:   []Answer{},
		},
		{
			ID:        "3",
			Title:     "Understanding fixed vs floating interest rates for car loans.",
			Details:   "Can someone explain the pros and cons of fixed vs floating interest rates in the context of a 5-year car loan? Which one is generally better given the current market conditions?",
			Author:    "Rajesh V.",
			Tags:      []string{"car loan", "interest rates", "fixed vs floating"},
			CreatedAt: day(2024, time.July, 15),
			Answers: []Answer{
				{ID: "a3-1", QuestionID: "3", Details: "Fixed rates offer predictability, which is good for budgeting. Floating rates can be lower initially but might increase.", Author: "ConsultantGPT", Likes: 10, CreatedAt: day(2024, time.July, 16)},
			},
		},
	}
}
