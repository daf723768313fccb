package service

import (
	"context"
	"course_engine_backend/internal/model"
	"course_engine_backend/pkg/logger"
	"course_engine_backend/pkg/monitoring"
	"course_engine_backend/pkg/tracing"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type AchievementService struct {
	AchievementRepo AchievementStore
	ProgressRepo    ProgressStore
	Badges          BadgeResolver
	Engine          *EngineSettings
	now             func() time.Time
}

func NewAchievementService(
	achievementRepo AchievementStore,
	progressRepo ProgressStore,
	badges BadgeResolver,
	engine *EngineSettings,
) *AchievementService {
	return &AchievementService{
		AchievementRepo: achievementRepo,
		ProgressRepo:    progressRepo,
		Badges:          badges,
		Engine:          engine,
		now:             time.Now,
	}
}

// IssueCompletionAchievements 课程完成后依次检查三类成就，已存在的跳过
func (s *AchievementService) IssueCompletionAchievements(ctx context.Context, userID, courseID uint, courseTitle string, timeSpentMinutes int) ([]model.Achievement, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AchievementService.IssueCompletionAchievements")
	defer span.End()
	span.SetAttributes(tracing.UserAttrs(userID, "course.id", courseID)...)

	var (
		issued []model.Achievement
		errs   []error
	)

	// 各项互不依赖，单项失败不影响其余成就
	a, err := s.grant(ctx, userID, courseID, model.AchievementCourseCompletion,
		fmt.Sprintf("%s Master", courseTitle),
		fmt.Sprintf("Completed the %s course", courseTitle))
	if err != nil {
		errs = append(errs, fmt.Errorf("course_completion: %w", err))
	}
	issued = appendIssued(issued, a)

	completedCourses, err := s.ProgressRepo.CountCompletedCourses(ctx, userID)
	if err != nil {
		errs = append(errs, fmt.Errorf("first_course: %w", err))
	} else if completedCourses == 1 {
		a, err := s.grant(ctx, userID, courseID, model.AchievementFirstCourse,
			"First Steps",
			"Completed your first course on the platform")
		if err != nil {
			errs = append(errs, fmt.Errorf("first_course: %w", err))
		}
		issued = appendIssued(issued, a)
	}

	if timeSpentMinutes < s.Engine.Get().FastLearnerMinutes {
		a, err := s.grant(ctx, userID, courseID, model.AchievementFastLearner,
			"Speed Demon",
			fmt.Sprintf("Completed %s in record time!", courseTitle))
		if err != nil {
			errs = append(errs, fmt.Errorf("fast_learner: %w", err))
		}
		issued = appendIssued(issued, a)
	}

	return issued, errors.Join(errs...)
}

func appendIssued(list []model.Achievement, a *model.Achievement) []model.Achievement {
	if a == nil {
		return list
	}
	return append(list, *a)
}

// grant 已存在（含并发下插入失败的一方）返回 nil, nil
func (s *AchievementService) grant(ctx context.Context, userID, courseID uint, t model.AchievementType, title, description string) (*model.Achievement, error) {
	scope := model.AchievementScope(t, courseID)

	exists, err := s.AchievementRepo.Exists(ctx, userID, t, scope)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	cid := courseID
	achievement := &model.Achievement{
		UserID:      userID,
		CourseID:    &cid,
		Type:        t,
		ScopeKey:    scope,
		Title:       title,
		Description: description,
		EarnedAt:    s.now(),
	}
	if s.Badges != nil {
		achievement.BadgeURL = s.Badges.BadgeURL(t)
	}

	created, err := s.AchievementRepo.CreateIfAbsent(ctx, achievement)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, nil
	}

	monitoring.AchievementsIssued.WithLabelValues(string(t)).Inc()
	logger.Log.Info("achievement issued",
		zap.Uint("userId", userID),
		zap.Uint("courseId", courseID),
		zap.String("type", string(t)),
	)
	return achievement, nil
}

func (s *AchievementService) ListUserAchievements(ctx context.Context, userID uint) ([]model.Achievement, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AchievementService.ListUserAchievements")
	defer span.End()

	achievements, err := s.AchievementRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if achievements == nil {
		achievements = []model.Achievement{}
	}
	return achievements, nil
}
