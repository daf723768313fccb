package repository

import (
	"context"
	"course_engine_backend/internal/model"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/database"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repository_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCourseRepository_OrderedLessons(t *testing.T) {
	ctx := context.Background()
	repo := NewCourseRepository(openTestDB(t), nil, time.Minute)

	course := &model.Course{Title: "SQL"}
	if err := repo.Create(ctx, course); err != nil {
		t.Fatalf("create course: %v", err)
	}
	for _, order := range []int{3, 1, 2} {
		if err := repo.CreateLesson(ctx, &model.Lesson{CourseID: course.ID, Title: fmt.Sprintf("L%d", order), SortOrder: order}); err != nil {
			t.Fatalf("create lesson: %v", err)
		}
	}

	lessons, err := repo.OrderedLessons(ctx, course.ID)
	if err != nil {
		t.Fatalf("ordered lessons: %v", err)
	}
	if len(lessons) != 3 {
		t.Fatalf("expected 3 lessons, got %d", len(lessons))
	}
	for i, l := range lessons {
		if l.SortOrder != i+1 {
			t.Fatalf("lesson %d has order %d", i, l.SortOrder)
		}
	}

	total, err := repo.TotalLessons(ctx, course.ID)
	if err != nil || total != 3 {
		t.Fatalf("expected total 3, got %d (%v)", total, err)
	}

	if _, err := repo.GetCourse(ctx, 999); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetLesson(ctx, 999); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnrollmentRepository_IsActivelyEnrolled(t *testing.T) {
	ctx := context.Background()
	repo := NewEnrollmentRepository(openTestDB(t))

	if err := repo.Create(ctx, &model.Enrollment{UserID: 1, CourseID: 1, Status: model.EnrollmentActive, IsActive: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, &model.Enrollment{UserID: 2, CourseID: 1, Status: model.EnrollmentDropped, IsActive: false}); err != nil {
		t.Fatalf("create: %v", err)
	}

	cases := []struct {
		userID uint
		want   bool
	}{
		{1, true},
		{2, false},
		{3, false},
	}
	for _, c := range cases {
		got, err := repo.IsActivelyEnrolled(ctx, c.userID, 1)
		if err != nil {
			t.Fatalf("user %d: %v", c.userID, err)
		}
		if got != c.want {
			t.Fatalf("user %d: got %v, want %v", c.userID, got, c.want)
		}
	}
}

func TestQuizAttemptRepository_DuplicateNumberIsConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewQuizAttemptRepository(openTestDB(t))

	newAttempt := func() *model.QuizAttempt {
		return &model.QuizAttempt{
			UserID: 1, QuizID: 1, AttemptNumber: 1, Score: 50, TotalPoints: 2, EarnedPoints: 1,
			IsCompleted: true, SubmittedAt: time.Now(),
			Answers: []model.QuizAttemptAnswer{{QuestionID: 1, Value: datatypes.JSON(`true`), IsCorrect: true, EarnedPoints: 1}},
		}
	}
	if err := repo.Create(ctx, newAttempt()); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := repo.Create(ctx, newAttempt()); !errors.Is(err, util.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	second := newAttempt()
	second.AttemptNumber = 2
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("second insert: %v", err)
	}

	count, err := repo.CountByUserAndQuiz(ctx, 1, 1)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 attempts, got %d (%v)", count, err)
	}
	list, err := repo.ListByUserAndQuiz(ctx, 1, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].AttemptNumber != 2 || len(list[0].Answers) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func seedLessons(t *testing.T, db *gorm.DB, n int) (*model.Course, []model.Lesson) {
	t.Helper()
	ctx := context.Background()
	courses := NewCourseRepository(db, nil, 0)
	course := &model.Course{Title: "Go"}
	if err := courses.Create(ctx, course); err != nil {
		t.Fatalf("create course: %v", err)
	}
	lessons := make([]model.Lesson, 0, n)
	for i := 0; i < n; i++ {
		l := &model.Lesson{CourseID: course.ID, Title: fmt.Sprintf("L%d", i+1), SortOrder: i + 1}
		if err := courses.CreateLesson(ctx, l); err != nil {
			t.Fatalf("create lesson: %v", err)
		}
		lessons = append(lessons, *l)
	}
	return course, lessons
}

func TestProgressRepository_ApplyLessonUpdateAccumulates(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewProgressRepository(db)
	course, lessons := seedLessons(t, db, 4)
	at := time.Now()

	res, err := repo.ApplyLessonUpdate(ctx, LessonUpdate{UserID: 1, CourseID: course.ID, LessonID: lessons[0].ID, Minutes: 3, At: at})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if res.Progress.TimeSpentMinutes != 3 || len(res.Progress.CompletedLessons) != 0 || res.TotalLessons != 4 {
		t.Fatalf("unexpected progress: %+v total=%d", res.Progress, res.TotalLessons)
	}

	second := LessonUpdate{UserID: 1, CourseID: course.ID, LessonID: lessons[1].ID, Minutes: 4, MarkCompleted: true, At: at}
	if _, err := repo.ApplyLessonUpdate(ctx, second); err != nil {
		t.Fatalf("second update: %v", err)
	}
	second.Minutes = 0
	res, err = repo.ApplyLessonUpdate(ctx, second)
	if err != nil {
		t.Fatalf("repeat update: %v", err)
	}
	p := res.Progress
	if p.TimeSpentMinutes != 7 {
		t.Fatalf("expected accumulated 7 minutes, got %d", p.TimeSpentMinutes)
	}
	if len(p.CompletedLessons) != 1 || p.CompletedLessons[0] != lessons[1].ID {
		t.Fatalf("expected completed set {%d}, got %v", lessons[1].ID, p.CompletedLessons)
	}
	if p.ProgressPercentage != 25 || p.IsCompleted || res.CompletedNow {
		t.Fatalf("expected 25%% and not completed, got %+v", p)
	}
	if p.CurrentLessonID == nil || *p.CurrentLessonID != lessons[1].ID {
		t.Fatalf("expected current lesson %d, got %v", lessons[1].ID, p.CurrentLessonID)
	}
}

func TestProgressRepository_CompletionTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewProgressRepository(db)
	course, lessons := seedLessons(t, db, 2)
	at := time.Now()

	transitions := 0
	for _, upd := range []LessonUpdate{
		{UserID: 1, CourseID: course.ID, LessonID: lessons[0].ID, MarkCompleted: true, At: at},
		{UserID: 1, CourseID: course.ID, LessonID: lessons[1].ID, MarkCompleted: true, At: at},
		{UserID: 1, CourseID: course.ID, LessonID: lessons[1].ID, MarkCompleted: true, At: at},
		{UserID: 1, CourseID: course.ID, LessonID: lessons[0].ID, Minutes: 2, At: at},
	} {
		res, err := repo.ApplyLessonUpdate(ctx, upd)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if res.CompletedNow {
			transitions++
		}
	}
	if transitions != 1 {
		t.Fatalf("expected exactly one transition, got %d", transitions)
	}

	count, err := repo.CountCompletedCourses(ctx, 1)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 completed course, got %d (%v)", count, err)
	}
	stored, err := repo.Find(ctx, 1, course.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !stored.IsCompleted || stored.CompletedAt == nil || stored.ProgressPercentage != 100 {
		t.Fatalf("unexpected stored progress: %+v", stored)
	}

	// 新增课时后百分比回落，完成状态随同一事务重置
	if err := NewCourseRepository(db, nil, 0).CreateLesson(ctx, &model.Lesson{CourseID: course.ID, Title: "L3", SortOrder: 3}); err != nil {
		t.Fatalf("add lesson: %v", err)
	}
	res, err := repo.ApplyLessonUpdate(ctx, LessonUpdate{UserID: 1, CourseID: course.ID, LessonID: lessons[0].ID, At: at})
	if err != nil {
		t.Fatalf("update after new lesson: %v", err)
	}
	if res.Progress.IsCompleted || res.Progress.CompletedAt != nil || res.Progress.ProgressPercentage != 67 || res.TotalLessons != 3 {
		t.Fatalf("expected completion reset at 67%%, got %+v", res.Progress)
	}
}

func TestProgressRepository_RemovedLessonNotCounted(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewProgressRepository(db)
	course, lessons := seedLessons(t, db, 3)
	at := time.Now()

	for _, l := range lessons[:2] {
		if _, err := repo.ApplyLessonUpdate(ctx, LessonUpdate{UserID: 1, CourseID: course.ID, LessonID: l.ID, MarkCompleted: true, At: at}); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	if err := db.Delete(&model.Lesson{}, lessons[1].ID).Error; err != nil {
		t.Fatalf("remove lesson: %v", err)
	}

	res, err := repo.ApplyLessonUpdate(ctx, LessonUpdate{UserID: 1, CourseID: course.ID, LessonID: lessons[0].ID, At: at})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.TotalLessons != 2 || res.Progress.ProgressPercentage != 50 || len(res.Progress.CompletedLessons) != 1 {
		t.Fatalf("unexpected result: total=%d %+v", res.TotalLessons, res.Progress)
	}
	found, err := repo.Find(ctx, 1, course.ID)
	if err != nil || len(found.CompletedLessons) != 1 || found.CompletedLessons[0] != lessons[0].ID {
		t.Fatalf("expected only lesson %d in completed set, got %v (%v)", lessons[0].ID, found.CompletedLessons, err)
	}
}

func TestProgressRepository_FindMissingReturnsZeroValue(t *testing.T) {
	repo := NewProgressRepository(openTestDB(t))
	p, err := repo.Find(context.Background(), 5, 6)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.ID != 0 || p.UserID != 5 || p.CourseID != 6 || p.CompletedLessons == nil {
		t.Fatalf("unexpected zero progress: %+v", p)
	}
}

func TestAchievementRepository_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewAchievementRepository(openTestDB(t))
	courseID := uint(1)

	newAchievement := func() *model.Achievement {
		return &model.Achievement{
			UserID: 1, CourseID: &courseID, Type: model.AchievementCourseCompletion,
			ScopeKey: model.AchievementScope(model.AchievementCourseCompletion, courseID),
			Title:    "Go Master", Description: "Completed the Go course", EarnedAt: time.Now(),
		}
	}

	created, err := repo.CreateIfAbsent(ctx, newAchievement())
	if err != nil || !created {
		t.Fatalf("expected first insert, got %v (%v)", created, err)
	}
	created, err = repo.CreateIfAbsent(ctx, newAchievement())
	if err != nil || created {
		t.Fatalf("expected duplicate to be skipped, got %v (%v)", created, err)
	}

	exists, err := repo.Exists(ctx, 1, model.AchievementCourseCompletion, "course:1")
	if err != nil || !exists {
		t.Fatalf("expected achievement to exist, got %v (%v)", exists, err)
	}
	list, err := repo.FindByUserID(ctx, 1)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 achievement, got %d (%v)", len(list), err)
	}
}
