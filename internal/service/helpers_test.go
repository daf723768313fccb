package service

import (
	"context"
	"course_engine_backend/internal/config"
	"course_engine_backend/internal/model"
	"course_engine_backend/internal/repository"
	"course_engine_backend/pkg/database"
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// testEnv 由真实 gorm 仓储组装的服务集合
type testEnv struct {
	DB           *gorm.DB
	Courses      *repository.CourseRepository
	Enrollments  *repository.EnrollmentRepository
	Quizzes      *repository.QuizRepository
	Attempts     *repository.QuizAttemptRepository
	ProgressRepo *repository.ProgressRepository
	Achievements *repository.AchievementRepository
	Engine       *EngineSettings

	Issuer   *AchievementService
	Progress *ProgressService
	Ledger   *QuizAttemptService
	Lessons  *LessonService
	QuizSvc  *QuizService
}

type staticBadges struct{}

func (staticBadges) BadgeURL(t model.AchievementType) string {
	return "/uploads/badges/" + string(t) + "_badge.png"
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	env := &testEnv{
		DB:           db,
		Courses:      repository.NewCourseRepository(db, nil, 0),
		Enrollments:  repository.NewEnrollmentRepository(db),
		Quizzes:      repository.NewQuizRepository(db),
		Attempts:     repository.NewQuizAttemptRepository(db),
		ProgressRepo: repository.NewProgressRepository(db),
		Achievements: repository.NewAchievementRepository(db),
		Engine:       NewEngineSettings(config.EngineConfig{AttemptRetryLimit: 10, FastLearnerMinutes: 120}),
	}
	env.Issuer = NewAchievementService(env.Achievements, env.ProgressRepo, staticBadges{}, env.Engine)
	env.Progress = NewProgressService(env.ProgressRepo, env.Enrollments, env.Courses, env.Issuer)
	env.Ledger = NewQuizAttemptService(env.Quizzes, env.Attempts, env.Courses, env.Progress, env.Engine)
	env.Lessons = NewLessonService(env.Courses, env.ProgressRepo, env.Enrollments, env.Quizzes)
	env.QuizSvc = NewQuizService(env.Quizzes, env.Courses)
	return env
}

func (e *testEnv) seedCourse(t *testing.T, title string, lessons int) (*model.Course, []model.Lesson) {
	t.Helper()
	ctx := context.Background()
	course := &model.Course{Title: title, InstructorID: 99}
	if err := e.Courses.Create(ctx, course); err != nil {
		t.Fatalf("create course: %v", err)
	}
	out := make([]model.Lesson, 0, lessons)
	for i := 0; i < lessons; i++ {
		l := &model.Lesson{CourseID: course.ID, Title: fmt.Sprintf("Lesson %d", i+1), SortOrder: i + 1}
		if err := e.Courses.CreateLesson(ctx, l); err != nil {
			t.Fatalf("create lesson: %v", err)
		}
		out = append(out, *l)
	}
	return course, out
}

func (e *testEnv) enroll(t *testing.T, userID, courseID uint) {
	t.Helper()
	err := e.Enrollments.Create(context.Background(), &model.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		Status:   model.EnrollmentActive,
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
}

// seedQuiz 两道题：选择题（正确答案下标 1，6 分）和判断题（true，4 分）
func (e *testEnv) seedQuiz(t *testing.T, lessonID uint, passingScore, maxAttempts int) *model.Quiz {
	t.Helper()
	quiz := &model.Quiz{
		LessonID:     lessonID,
		Title:        "Checkpoint",
		PassingScore: passingScore,
		MaxAttempts:  maxAttempts,
		IsActive:     true,
		Questions: []model.Question{
			{Type: model.MultipleChoice, Prompt: "Pick B", Options: datatypes.JSON(`["a","b","c"]`), CorrectAnswer: datatypes.JSON(`1`), Points: 6, SortOrder: 1},
			{Type: model.TrueFalse, Prompt: "Go has goroutines", Options: datatypes.JSON(`[]`), CorrectAnswer: datatypes.JSON(`true`), Points: 4, SortOrder: 2},
		},
	}
	if err := e.Quizzes.Create(context.Background(), quiz); err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return quiz
}

func allCorrect(q *model.Quiz) []SubmittedAnswer {
	return []SubmittedAnswer{
		{QuestionID: q.Questions[0].ID, Answer: []byte(`1`)},
		{QuestionID: q.Questions[1].ID, Answer: []byte(`true`)},
	}
}

func allWrong(q *model.Quiz) []SubmittedAnswer {
	return []SubmittedAnswer{
		{QuestionID: q.Questions[0].ID, Answer: []byte(`2`)},
		{QuestionID: q.Questions[1].ID, Answer: []byte(`false`)},
	}
}
