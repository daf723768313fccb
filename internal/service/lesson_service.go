package service

import (
	"context"
	"course_engine_backend/internal/model"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/tracing"
	"errors"
	"fmt"
)

type LessonService struct {
	Catalog      CourseCatalog
	ProgressRepo ProgressStore
	Enrollments  EnrollmentChecker
	QuizRepo     QuizStore
}

func NewLessonService(catalog CourseCatalog, progressRepo ProgressStore, enrollments EnrollmentChecker, quizRepo QuizStore) *LessonService {
	return &LessonService{
		Catalog:      catalog,
		ProgressRepo: progressRepo,
		Enrollments:  enrollments,
		QuizRepo:     quizRepo,
	}
}

type LessonWithAccess struct {
	model.Lesson
	LessonAccess
}

type CourseLessons struct {
	CourseID           uint               `json:"courseId"`
	CourseTitle        string             `json:"courseTitle"`
	TotalLessons       int                `json:"totalLessons"`
	CompletedCount     int                `json:"completedCount"`
	ProgressPercentage int                `json:"progressPercentage"`
	CurrentLessonID    *uint              `json:"currentLessonId"`
	CanAccessNext      bool               `json:"canAccessNext"`
	Lessons            []LessonWithAccess `json:"lessons"`
}

type LessonDetail struct {
	Lesson LessonWithAccess `json:"lesson"`
	QuizID *uint            `json:"quizId,omitempty"`
}

func (s *LessonService) load(ctx context.Context, userID, courseID uint) (*model.Course, []model.Lesson, *model.CourseProgress, error) {
	enrolled, err := s.Enrollments.IsActivelyEnrolled(ctx, userID, courseID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !enrolled {
		return nil, nil, nil, fmt.Errorf("%w: course %d", util.ErrNotEnrolled, courseID)
	}

	course, err := s.Catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, nil, nil, err
	}
	lessons, err := s.Catalog.OrderedLessons(ctx, courseID)
	if err != nil {
		return nil, nil, nil, err
	}
	progress, err := s.ProgressRepo.Find(ctx, userID, courseID)
	if err != nil {
		return nil, nil, nil, err
	}
	return course, lessons, progress, nil
}

func withAccess(lessons []model.Lesson, access []LessonAccess) []LessonWithAccess {
	out := make([]LessonWithAccess, len(lessons))
	for i := range lessons {
		out[i] = LessonWithAccess{Lesson: lessons[i], LessonAccess: access[i]}
	}
	return out
}

// CourseLessons 课程课时列表及每课访问状态
func (s *LessonService) CourseLessons(ctx context.Context, userID, courseID uint) (*CourseLessons, error) {
	ctx, span := tracing.Tracer.Start(ctx, "LessonService.CourseLessons")
	defer span.End()

	course, lessons, progress, err := s.load(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	completed := progress.CompletedSet()
	access := ResolveAccess(LessonRefs(lessons), completed)

	count := len(CompletedInCourse(lessons, completed))

	return &CourseLessons{
		CourseID:           course.ID,
		CourseTitle:        course.Title,
		TotalLessons:       len(lessons),
		CompletedCount:     count,
		ProgressPercentage: model.CompletionPercentage(count, len(lessons)),
		CurrentLessonID:    progress.CurrentLessonID,
		CanAccessNext:      count < len(lessons),
		Lessons:            withAccess(lessons, access),
	}, nil
}

// GetLesson 单课访问，未解锁返回 util.ErrLessonLocked
func (s *LessonService) GetLesson(ctx context.Context, userID, courseID, lessonID uint) (*LessonDetail, error) {
	ctx, span := tracing.Tracer.Start(ctx, "LessonService.GetLesson")
	defer span.End()

	_, lessons, progress, err := s.load(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range lessons {
		if lessons[i].ID == lessonID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: lesson %d in course %d", util.ErrNotFound, lessonID, courseID)
	}

	access := ResolveAccess(LessonRefs(lessons), progress.CompletedSet())[idx]
	if !access.CanAccess {
		return nil, util.ErrLessonLocked
	}

	detail := &LessonDetail{Lesson: LessonWithAccess{Lesson: lessons[idx], LessonAccess: access}}
	if s.QuizRepo != nil {
		quiz, err := s.QuizRepo.FindActiveByLesson(ctx, lessonID)
		switch {
		case err == nil:
			detail.QuizID = &quiz.ID
		case !errors.Is(err, util.ErrNotFound):
			return nil, err
		}
	}
	return detail, nil
}
