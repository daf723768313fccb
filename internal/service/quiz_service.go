package service

import (
	"context"
	"course_engine_backend/internal/model"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/logger"
	"course_engine_backend/pkg/tracing"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	DefaultPassingScore = 70
	DefaultMaxAttempts  = 3
)

type QuizService struct {
	QuizRepo QuizStore
	Catalog  CourseCatalog
}

func NewQuizService(quizRepo QuizStore, catalog CourseCatalog) *QuizService {
	return &QuizService{QuizRepo: quizRepo, Catalog: catalog}
}

type QuestionInput struct {
	Type          model.QuestionType `json:"type" binding:"required"`
	Question      string             `json:"question" binding:"required"`
	Options       []string           `json:"options"`
	CorrectAnswer json.RawMessage    `json:"correctAnswer" swaggertype:"object"`
	Explanation   string             `json:"explanation"`
	Points        int                `json:"points"`
	Order         int                `json:"order"`
}

type CreateQuizRequest struct {
	LessonID     uint            `json:"lessonId" binding:"required"`
	Title        string          `json:"title" binding:"required"`
	Description  string          `json:"description"`
	TimeLimit    *int            `json:"timeLimit"`
	PassingScore *int            `json:"passingScore"`
	MaxAttempts  *int            `json:"maxAttempts"`
	Questions    []QuestionInput `json:"questions" binding:"required,min=1"`
}

// GetQuizForLesson 学生视角隐藏正确答案与解析
func (s *QuizService) GetQuizForLesson(ctx context.Context, lessonID uint, revealAnswers bool) (*model.Quiz, error) {
	ctx, span := tracing.Tracer.Start(ctx, "QuizService.GetQuizForLesson")
	defer span.End()

	quiz, err := s.QuizRepo.FindActiveByLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if !revealAnswers {
		for i := range quiz.Questions {
			quiz.Questions[i].CorrectAnswer = nil
			quiz.Questions[i].Explanation = ""
		}
	}
	return quiz, nil
}

func (s *QuizService) CreateQuiz(ctx context.Context, req *CreateQuizRequest) (*model.Quiz, error) {
	ctx, span := tracing.Tracer.Start(ctx, "QuizService.CreateQuiz")
	defer span.End()

	quiz, err := BuildQuiz(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.Catalog.GetLesson(ctx, req.LessonID); err != nil {
		return nil, err
	}
	if err := s.QuizRepo.Create(ctx, quiz); err != nil {
		return nil, err
	}

	logger.Log.Info("quiz created",
		zap.Uint("quizId", quiz.ID),
		zap.Uint("lessonId", quiz.LessonID),
		zap.Int("questions", len(quiz.Questions)),
	)
	return quiz, nil
}

// BuildQuiz 校验请求并填充默认值
func BuildQuiz(req *CreateQuizRequest) (*model.Quiz, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", util.ErrValidation)
	}
	if len(req.Questions) == 0 {
		return nil, fmt.Errorf("%w: at least one question is required", util.ErrValidation)
	}

	quiz := &model.Quiz{
		LessonID:         req.LessonID,
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		TimeLimitMinutes: req.TimeLimit,
		PassingScore:     DefaultPassingScore,
		MaxAttempts:      DefaultMaxAttempts,
		IsActive:         true,
	}
	if req.PassingScore != nil {
		if *req.PassingScore < 0 || *req.PassingScore > 100 {
			return nil, fmt.Errorf("%w: passingScore must be between 0 and 100", util.ErrValidation)
		}
		quiz.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		if *req.MaxAttempts < 1 {
			return nil, fmt.Errorf("%w: maxAttempts must be at least 1", util.ErrValidation)
		}
		quiz.MaxAttempts = *req.MaxAttempts
	}
	if req.TimeLimit != nil && *req.TimeLimit <= 0 {
		return nil, fmt.Errorf("%w: timeLimit must be positive", util.ErrValidation)
	}

	orders := make(map[int]bool, len(req.Questions))
	for i, in := range req.Questions {
		q, err := buildQuestion(i, in)
		if err != nil {
			return nil, err
		}
		if orders[q.SortOrder] {
			return nil, fmt.Errorf("%w: duplicate question order %d", util.ErrValidation, q.SortOrder)
		}
		orders[q.SortOrder] = true
		quiz.Questions = append(quiz.Questions, *q)
	}
	return quiz, nil
}

func buildQuestion(i int, in QuestionInput) (*model.Question, error) {
	n := i + 1
	if strings.TrimSpace(in.Question) == "" {
		return nil, fmt.Errorf("%w: question %d text is required", util.ErrValidation, n)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: question %d has invalid type %q", util.ErrValidation, n, in.Type)
	}
	if in.Points <= 0 {
		return nil, fmt.Errorf("%w: question %d points must be positive", util.ErrValidation, n)
	}

	answer := normalizeRaw(in.CorrectAnswer)
	if answer == nil {
		return nil, fmt.Errorf("%w: question %d correct answer is required", util.ErrValidation, n)
	}

	switch in.Type {
	case model.MultipleChoice:
		if len(in.Options) < 2 {
			return nil, fmt.Errorf("%w: question %d needs at least 2 options", util.ErrValidation, n)
		}
		idx, ok := decodeIndex(answer)
		if !ok || idx < 0 || idx >= int64(len(in.Options)) {
			return nil, fmt.Errorf("%w: question %d correct answer must be an option index", util.ErrValidation, n)
		}
	case model.TrueFalse:
		var b bool
		if json.Unmarshal(answer, &b) != nil {
			return nil, fmt.Errorf("%w: question %d correct answer must be a boolean", util.ErrValidation, n)
		}
	case model.ShortAnswer:
		var s string
		if json.Unmarshal(answer, &s) != nil || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: question %d correct answer must be a non-empty string", util.ErrValidation, n)
		}
	}

	options := in.Options
	if options == nil {
		options = []string{}
	}
	encoded, err := json.Marshal(options)
	if err != nil {
		return nil, err
	}

	order := in.Order
	if order == 0 {
		order = n
	}

	return &model.Question{
		Type:          in.Type,
		Prompt:        strings.TrimSpace(in.Question),
		Options:       datatypes.JSON(encoded),
		CorrectAnswer: datatypes.JSON(answer),
		Explanation:   in.Explanation,
		Points:        in.Points,
		SortOrder:     order,
	}, nil
}
