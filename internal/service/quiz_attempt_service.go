package service

import (
	"context"
	"course_engine_backend/internal/model"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/logger"
	"course_engine_backend/pkg/monitoring"
	"course_engine_backend/pkg/tracing"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type QuizAttemptService struct {
	QuizRepo    QuizStore
	AttemptRepo AttemptStore
	Catalog     CourseCatalog
	Lessons     LessonCompleter
	Engine      *EngineSettings
	now         func() time.Time
}

func NewQuizAttemptService(
	quizRepo QuizStore,
	attemptRepo AttemptStore,
	catalog CourseCatalog,
	lessons LessonCompleter,
	engine *EngineSettings,
) *QuizAttemptService {
	return &QuizAttemptService{
		QuizRepo:    quizRepo,
		AttemptRepo: attemptRepo,
		Catalog:     catalog,
		Lessons:     lessons,
		Engine:      engine,
		now:         time.Now,
	}
}

type SubmitAttemptRequest struct {
	QuizID    uint              `json:"quizId" binding:"required"`
	Answers   []SubmittedAnswer `json:"answers" binding:"required,min=1"`
	TimeSpent int               `json:"timeSpent" binding:"min=0"`
}

// AttemptResult 提交结果
type AttemptResult struct {
	Attempt           *model.QuizAttempt `json:"attempt"`
	QuizTitle         string             `json:"quizTitle"`
	PassingScore      int                `json:"passingScore"`
	MaxAttempts       int                `json:"maxAttempts"`
	QuestionResults   []QuestionResult   `json:"questionResults"`
	CanRetake         bool               `json:"canRetake"`
	AttemptsRemaining int                `json:"attemptsRemaining"`
	LessonProgress    *ProgressSnapshot  `json:"lessonProgress,omitempty"`
}

// RecordAttempt 判分后写入尝试记录。attempt_number 由唯一索引保证不重复，冲突时重新计数重试
func (s *QuizAttemptService) RecordAttempt(ctx context.Context, userID, quizID uint, answers []SubmittedAnswer, timeSpentSeconds int) (*AttemptResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "QuizAttemptService.RecordAttempt")
	defer span.End()
	span.SetAttributes(tracing.UserAttrs(userID, "quiz.id", quizID)...)

	if timeSpentSeconds < 0 {
		return nil, fmt.Errorf("%w: timeSpent must not be negative", util.ErrValidation)
	}

	quiz, err := s.QuizRepo.FindByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsActive {
		return nil, fmt.Errorf("%w: quiz %d is not active", util.ErrNotFound, quizID)
	}

	scored, err := ScoreAttempt(quiz, answers)
	if err != nil {
		return nil, err
	}

	attempt, err := s.insertWithRetry(ctx, userID, quiz, scored, timeSpentSeconds)
	if err != nil {
		return nil, err
	}

	monitoring.QuizAttempts.WithLabelValues(monitoring.AttemptResult(attempt.IsPassed)).Inc()
	span.SetAttributes(
		attribute.Int("attempt.number", attempt.AttemptNumber),
		attribute.Int("attempt.score", attempt.Score),
	)
	logger.Log.Info("quiz attempt recorded",
		zap.Uint("userId", userID),
		zap.Uint("quizId", quizID),
		zap.Int("attemptNumber", attempt.AttemptNumber),
		zap.Int("score", attempt.Score),
		zap.Bool("passed", attempt.IsPassed),
	)

	result := &AttemptResult{
		Attempt:           attempt,
		QuizTitle:         quiz.Title,
		PassingScore:      quiz.PassingScore,
		MaxAttempts:       quiz.MaxAttempts,
		QuestionResults:   scored.Questions,
		CanRetake:         attempt.AttemptNumber < quiz.MaxAttempts && !attempt.IsPassed,
		AttemptsRemaining: quiz.MaxAttempts - attempt.AttemptNumber,
	}

	if attempt.IsPassed {
		result.LessonProgress = s.completeLesson(ctx, userID, quiz)
	}

	return result, nil
}

func (s *QuizAttemptService) insertWithRetry(ctx context.Context, userID uint, quiz *model.Quiz, scored *ScoreResult, timeSpentSeconds int) (*model.QuizAttempt, error) {
	limit := s.Engine.Get().AttemptRetryLimit

	for try := 0; try <= limit; try++ {
		count, err := s.AttemptRepo.CountByUserAndQuiz(ctx, userID, quiz.ID)
		if err != nil {
			return nil, err
		}
		if count >= int64(quiz.MaxAttempts) {
			return nil, fmt.Errorf("%w: %d of %d attempts used", util.ErrAttemptsExceeded, count, quiz.MaxAttempts)
		}

		attempt := newAttempt(userID, quiz.ID, int(count)+1, scored, timeSpentSeconds, s.now())
		err = s.AttemptRepo.Create(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, util.ErrConflict) {
			return nil, err
		}

		monitoring.AttemptConflicts.Inc()
		logger.Log.Debug("attempt number collision, retrying",
			zap.Uint("userId", userID),
			zap.Uint("quizId", quiz.ID),
			zap.Int("attemptNumber", attempt.AttemptNumber),
			zap.Int("try", try+1),
		)
	}

	return nil, fmt.Errorf("%w: could not allocate an attempt number after %d retries", util.ErrConflict, limit)
}

// newAttempt 每次重试都复制一份答案，避免上次失败插入回写的主键残留
func newAttempt(userID, quizID uint, number int, scored *ScoreResult, timeSpentSeconds int, at time.Time) *model.QuizAttempt {
	answers := make([]model.QuizAttemptAnswer, len(scored.Answers))
	copy(answers, scored.Answers)

	return &model.QuizAttempt{
		UserID:           userID,
		QuizID:           quizID,
		AttemptNumber:    number,
		Score:            scored.Score,
		TotalPoints:      scored.TotalPoints,
		EarnedPoints:     scored.EarnedPoints,
		TimeSpentSeconds: timeSpentSeconds,
		IsCompleted:      true,
		IsPassed:         scored.IsPassed,
		SubmittedAt:      at,
		Answers:          answers,
	}
}

// completeLesson 尝试已持久化，课时进度失败只记录日志
func (s *QuizAttemptService) completeLesson(ctx context.Context, userID uint, quiz *model.Quiz) *ProgressSnapshot {
	if s.Lessons == nil || s.Catalog == nil || quiz.LessonID == 0 {
		return nil
	}

	lesson, err := s.Catalog.GetLesson(ctx, quiz.LessonID)
	if err != nil {
		logger.Log.Warn("passed quiz lesson lookup failed",
			zap.Uint("userId", userID), zap.Uint("lessonId", quiz.LessonID), zap.Error(err))
		return nil
	}

	snapshot, err := s.Lessons.ApplyLessonProgress(ctx, LessonProgressInput{
		UserID:        userID,
		CourseID:      lesson.CourseID,
		LessonID:      lesson.ID,
		MarkCompleted: true,
	})
	if err != nil {
		logger.Log.Warn("passed quiz did not update lesson progress",
			zap.Uint("userId", userID), zap.Uint("lessonId", lesson.ID), zap.Error(err))
		return nil
	}
	return snapshot
}

func (s *QuizAttemptService) ListAttempts(ctx context.Context, userID, quizID uint) ([]model.QuizAttempt, error) {
	ctx, span := tracing.Tracer.Start(ctx, "QuizAttemptService.ListAttempts")
	defer span.End()

	if _, err := s.QuizRepo.FindByID(ctx, quizID); err != nil {
		return nil, err
	}
	return s.AttemptRepo.ListByUserAndQuiz(ctx, userID, quizID)
}
