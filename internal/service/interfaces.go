package service

import (
	"context"
	"course_engine_backend/internal/model"
	"course_engine_backend/internal/repository"
	"time"
)

// 服务层依赖的存储接口，gorm 实现位于 repository 包

type QuizStore interface {
	FindByID(ctx context.Context, quizID uint) (*model.Quiz, error)
	FindActiveByLesson(ctx context.Context, lessonID uint) (*model.Quiz, error)
	Create(ctx context.Context, quiz *model.Quiz) error
}

type AttemptStore interface {
	CountByUserAndQuiz(ctx context.Context, userID, quizID uint) (int64, error)
	Create(ctx context.Context, attempt *model.QuizAttempt) error
	ListByUserAndQuiz(ctx context.Context, userID, quizID uint) ([]model.QuizAttempt, error)
}

type ProgressStore interface {
	ApplyLessonUpdate(ctx context.Context, upd repository.LessonUpdate) (*repository.LessonUpdateResult, error)
	FindOrCreate(ctx context.Context, userID, courseID uint, at time.Time) (*model.CourseProgress, error)
	Find(ctx context.Context, userID, courseID uint) (*model.CourseProgress, error)
	CountCompletedCourses(ctx context.Context, userID uint) (int64, error)
}

type AchievementStore interface {
	FindByUserID(ctx context.Context, userID uint) ([]model.Achievement, error)
	Exists(ctx context.Context, userID uint, t model.AchievementType, scopeKey string) (bool, error)
	CreateIfAbsent(ctx context.Context, achievement *model.Achievement) (bool, error)
}

type EnrollmentChecker interface {
	IsActivelyEnrolled(ctx context.Context, userID, courseID uint) (bool, error)
}

type CourseCatalog interface {
	GetCourse(ctx context.Context, courseID uint) (*model.Course, error)
	GetLesson(ctx context.Context, lessonID uint) (*model.Lesson, error)
	OrderedLessons(ctx context.Context, courseID uint) ([]model.Lesson, error)
	TotalLessons(ctx context.Context, courseID uint) (int, error)
}

// CompletionIssuer 课程完成跃迁时调用
type CompletionIssuer interface {
	IssueCompletionAchievements(ctx context.Context, userID, courseID uint, courseTitle string, timeSpentMinutes int) ([]model.Achievement, error)
}

// LessonCompleter 测验通过后标记所属课时完成
type LessonCompleter interface {
	ApplyLessonProgress(ctx context.Context, in LessonProgressInput) (*ProgressSnapshot, error)
}

// BadgeResolver 成就徽章地址
type BadgeResolver interface {
	BadgeURL(t model.AchievementType) string
}
