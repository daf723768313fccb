package service

import (
	"context"
	"course_engine_backend/internal/model"
	"course_engine_backend/internal/repository"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/logger"
	"course_engine_backend/pkg/monitoring"
	"course_engine_backend/pkg/tracing"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

type ProgressService struct {
	ProgressRepo ProgressStore
	Enrollments  EnrollmentChecker
	Catalog      CourseCatalog
	Issuer       CompletionIssuer
	now          func() time.Time
}

func NewProgressService(
	progressRepo ProgressStore,
	enrollments EnrollmentChecker,
	catalog CourseCatalog,
	issuer CompletionIssuer,
) *ProgressService {
	return &ProgressService{
		ProgressRepo: progressRepo,
		Enrollments:  enrollments,
		Catalog:      catalog,
		Issuer:       issuer,
		now:          time.Now,
	}
}

type LessonProgressInput struct {
	UserID             uint
	CourseID           uint
	LessonID           uint
	TimeWatchedSeconds int
	MarkCompleted      bool
}

type LessonProgressRequest struct {
	LessonID    uint `json:"lessonId" binding:"required"`
	CourseID    uint `json:"courseId" binding:"required"`
	TimeWatched int  `json:"timeWatched" binding:"min=0"`
	Completed   bool `json:"completed"`
}

// ProgressSnapshot 对外返回的课程进度
type ProgressSnapshot struct {
	CourseID           uint                `json:"courseId"`
	CurrentLessonID    *uint               `json:"currentLessonId"`
	CompletedLessons   []uint              `json:"completedLessons"`
	TotalLessons       int                 `json:"totalLessons"`
	ProgressPercentage int                 `json:"progressPercentage"`
	TimeSpentMinutes   int                 `json:"timeSpentMinutes"`
	LastAccessedAt     time.Time           `json:"lastAccessedAt"`
	IsCompleted        bool                `json:"isCompleted"`
	CompletedAt        *time.Time          `json:"completedAt,omitempty"`
	NewAchievements    []model.Achievement `json:"newAchievements,omitempty"`
}

func newSnapshot(p *model.CourseProgress, totalLessons int) *ProgressSnapshot {
	completed := p.CompletedLessons
	if completed == nil {
		completed = []uint{}
	}
	return &ProgressSnapshot{
		CourseID:           p.CourseID,
		CurrentLessonID:    p.CurrentLessonID,
		CompletedLessons:   completed,
		TotalLessons:       totalLessons,
		ProgressPercentage: model.CompletionPercentage(len(completed), totalLessons),
		TimeSpentMinutes:   p.TimeSpentMinutes,
		LastAccessedAt:     p.LastAccessedAt,
		IsCompleted:        p.IsCompleted,
		CompletedAt:        p.CompletedAt,
	}
}

func WatchedMinutes(seconds int) int {
	return int(math.Round(float64(seconds) / 60))
}

func (s *ProgressService) ensureEnrolled(ctx context.Context, userID, courseID uint) error {
	enrolled, err := s.Enrollments.IsActivelyEnrolled(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if !enrolled {
		return fmt.Errorf("%w: course %d", util.ErrNotEnrolled, courseID)
	}
	return nil
}

// ApplyLessonProgress 记录课时学习进度；课程从未完成跃迁为完成时颁发成就
func (s *ProgressService) ApplyLessonProgress(ctx context.Context, in LessonProgressInput) (*ProgressSnapshot, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ProgressService.ApplyLessonProgress")
	defer span.End()
	span.SetAttributes(tracing.UserAttrs(in.UserID, "course.id", in.CourseID)...)

	if in.CourseID == 0 || in.LessonID == 0 {
		return nil, fmt.Errorf("%w: courseId and lessonId are required", util.ErrValidation)
	}
	if in.TimeWatchedSeconds < 0 {
		return nil, fmt.Errorf("%w: timeWatched must not be negative", util.ErrValidation)
	}

	// 未选课时不做任何写入
	if err := s.ensureEnrolled(ctx, in.UserID, in.CourseID); err != nil {
		return nil, err
	}

	course, err := s.Catalog.GetCourse(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	lesson, err := s.Catalog.GetLesson(ctx, in.LessonID)
	if err != nil {
		return nil, err
	}
	if lesson.CourseID != course.ID {
		return nil, fmt.Errorf("%w: lesson %d does not belong to course %d", util.ErrNotFound, in.LessonID, in.CourseID)
	}

	now := s.now()
	res, err := s.ProgressRepo.ApplyLessonUpdate(ctx, repository.LessonUpdate{
		UserID:        in.UserID,
		CourseID:      in.CourseID,
		LessonID:      in.LessonID,
		Minutes:       WatchedMinutes(in.TimeWatchedSeconds),
		MarkCompleted: in.MarkCompleted,
		At:            now,
	})
	if err != nil {
		return nil, err
	}
	progress := res.Progress

	snapshot := newSnapshot(progress, res.TotalLessons)
	if !res.CompletedNow {
		return snapshot, nil
	}

	monitoring.CourseCompletions.Inc()
	logger.Log.Info("course completed",
		zap.Uint("userId", in.UserID),
		zap.Uint("courseId", in.CourseID),
		zap.Int("timeSpentMinutes", progress.TimeSpentMinutes),
	)

	if s.Issuer != nil {
		issued, err := s.Issuer.IssueCompletionAchievements(ctx, in.UserID, in.CourseID, course.Title, progress.TimeSpentMinutes)
		if err != nil {
			logger.Log.Error("failed to issue completion achievements",
				zap.Uint("userId", in.UserID),
				zap.Uint("courseId", in.CourseID),
				zap.Error(err),
			)
		}
		snapshot.NewAchievements = issued
	}

	return snapshot, nil
}

// GetCourseProgress 首次访问时创建空进度
func (s *ProgressService) GetCourseProgress(ctx context.Context, userID, courseID uint) (*ProgressSnapshot, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ProgressService.GetCourseProgress")
	defer span.End()

	if err := s.ensureEnrolled(ctx, userID, courseID); err != nil {
		return nil, err
	}
	if _, err := s.Catalog.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}

	progress, err := s.ProgressRepo.FindOrCreate(ctx, userID, courseID, s.now())
	if err != nil {
		return nil, err
	}
	lessons, err := s.Catalog.OrderedLessons(ctx, courseID)
	if err != nil {
		return nil, err
	}
	progress.CompletedLessons = CompletedInCourse(lessons, progress.CompletedSet())
	return newSnapshot(progress, len(lessons)), nil
}
