package controller

import (
	"bytes"
	"context"
	"course_engine_backend/internal/config"
	"course_engine_backend/internal/middleware"
	"course_engine_backend/internal/model"
	"course_engine_backend/internal/repository"
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/database"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "controller-test-secret-0123456789abcdef"

var dbSeq int64

type fixture struct {
	router  *gin.Engine
	cfg     *config.Config
	courses *repository.CourseRepository
	enroll  *repository.EnrollmentRepository
	quizzes *repository.QuizRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:controller_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
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

	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	courses := repository.NewCourseRepository(db, nil, 0)
	enrollments := repository.NewEnrollmentRepository(db)
	quizzes := repository.NewQuizRepository(db)
	attempts := repository.NewQuizAttemptRepository(db)
	progress := repository.NewProgressRepository(db)
	achievements := repository.NewAchievementRepository(db)

	engine := service.NewEngineSettings(config.EngineConfig{})
	storage := &service.StorageService{Provider: &service.LocalStorageProvider{Config: &config.StorageConfig{LocalPath: t.TempDir()}}, BadgePrefix: "badges"}
	achievementSvc := service.NewAchievementService(achievements, progress, storage, engine)
	progressSvc := service.NewProgressService(progress, enrollments, courses, achievementSvc)
	attemptSvc := service.NewQuizAttemptService(quizzes, attempts, courses, progressSvc, engine)
	quizSvc := service.NewQuizService(quizzes, courses)
	lessonSvc := service.NewLessonService(courses, progress, enrollments, quizzes)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.GET("/api/health", NewHealthController(db, nil, storage).HealthCheck)
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg))
	{
		quizCtl := NewQuizController(quizSvc)
		attemptCtl := NewQuizAttemptController(attemptSvc)
		progressCtl := NewProgressController(progressSvc)
		lessonCtl := NewLessonController(lessonSvc)

		api.GET("/quizzes/lesson/:lessonId", quizCtl.GetLessonQuiz)
		api.POST("/quizzes", middleware.RoleMiddleware(model.Teacher), quizCtl.CreateQuiz)
		api.POST("/quiz-attempts", attemptCtl.SubmitAttempt)
		api.GET("/quiz-attempts/:quizId", attemptCtl.ListAttempts)
		api.POST("/progress/lesson", progressCtl.UpdateLessonProgress)
		api.GET("/progress/course/:courseId", progressCtl.GetCourseProgress)
		api.GET("/courses/:courseId/lessons", lessonCtl.GetCourseLessons)
		api.GET("/courses/:courseId/lessons/:lessonId", lessonCtl.GetLesson)
		api.GET("/achievements", NewAchievementController(achievementSvc).GetUserAchievements)
	}

	return &fixture{router: router, cfg: cfg, courses: courses, enroll: enrollments, quizzes: quizzes}
}

func (f *fixture) token(t *testing.T, userID uint, role model.UserRole) string {
	t.Helper()
	tok, err := util.GenerateJWT(userID, role, "u@example.com", f.cfg.JWT.Secret, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, env
}

func (f *fixture) seed(t *testing.T, lessons int) (*model.Course, []model.Lesson) {
	t.Helper()
	ctx := context.Background()
	course := &model.Course{Title: "Go"}
	if err := f.courses.Create(ctx, course); err != nil {
		t.Fatalf("course: %v", err)
	}
	out := make([]model.Lesson, 0, lessons)
	for i := 0; i < lessons; i++ {
		l := &model.Lesson{CourseID: course.ID, Title: fmt.Sprintf("L%d", i+1), SortOrder: i + 1}
		if err := f.courses.CreateLesson(ctx, l); err != nil {
			t.Fatalf("lesson: %v", err)
		}
		out = append(out, *l)
	}
	return course, out
}

func (f *fixture) enrollUser(t *testing.T, userID, courseID uint) {
	t.Helper()
	if err := f.enroll.Create(context.Background(), &model.Enrollment{
		UserID: userID, CourseID: courseID, Status: model.EnrollmentActive, IsActive: true,
	}); err != nil {
		t.Fatalf("enroll: %v", err)
	}
}

func (f *fixture) seedQuiz(t *testing.T, lessonID uint, maxAttempts int) *model.Quiz {
	t.Helper()
	quiz := &model.Quiz{
		LessonID: lessonID, Title: "Q", PassingScore: 70, MaxAttempts: maxAttempts, IsActive: true,
		Questions: []model.Question{
			{Type: model.TrueFalse, Prompt: "ok?", Options: datatypes.JSON(`[]`), CorrectAnswer: datatypes.JSON(`true`), Explanation: "yes", Points: 1, SortOrder: 1},
		},
	}
	if err := f.quizzes.Create(context.Background(), quiz); err != nil {
		t.Fatalf("quiz: %v", err)
	}
	return quiz
}

func TestAuth_MissingToken(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(t, http.MethodGet, "/api/achievements", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	w, _ = f.do(t, http.MethodGet, "/api/achievements", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", w.Code)
	}
}

func TestSubmitAttempt_Flow(t *testing.T) {
	f := newFixture(t)
	course, lessons := f.seed(t, 2)
	f.enrollUser(t, 1, course.ID)
	quiz := f.seedQuiz(t, lessons[0].ID, 2)
	tok := f.token(t, 1, model.Student)

	wrong := map[string]interface{}{
		"quizId":    quiz.ID,
		"timeSpent": 12,
		"answers":   []map[string]interface{}{{"questionId": quiz.Questions[0].ID, "answer": false}},
	}
	w, env := f.do(t, http.MethodPost, "/api/quiz-attempts", tok, wrong)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var res service.AttemptResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Attempt.AttemptNumber != 1 || res.Attempt.IsPassed || !res.CanRetake || res.AttemptsRemaining != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	right := map[string]interface{}{
		"quizId":  quiz.ID,
		"answers": []map[string]interface{}{{"questionId": quiz.Questions[0].ID, "answer": true}},
	}
	w, env = f.do(t, http.MethodPost, "/api/quiz-attempts", tok, right)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	res = service.AttemptResult{}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !res.Attempt.IsPassed || res.LessonProgress == nil || res.LessonProgress.ProgressPercentage != 50 {
		t.Fatalf("expected passed attempt to complete the lesson, got %+v", res)
	}

	w, env = f.do(t, http.MethodPost, "/api/quiz-attempts", tok, right)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 after max attempts, got %d", w.Code)
	}
	if !strings.HasPrefix(env.Message, util.ErrAttemptsExceeded.Error()) {
		t.Fatalf("unexpected message %q", env.Message)
	}

	w, env = f.do(t, http.MethodGet, fmt.Sprintf("/api/quiz-attempts/%d", quiz.ID), tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var attempts []model.QuizAttempt
	if err := json.Unmarshal(env.Data, &attempts); err != nil {
		t.Fatalf("decode attempts: %v", err)
	}
	if len(attempts) != 2 || attempts[0].AttemptNumber != 2 {
		t.Fatalf("unexpected history: %+v", attempts)
	}
}

func TestSubmitAttempt_BadRequests(t *testing.T) {
	f := newFixture(t)
	_, lessons := f.seed(t, 1)
	quiz := f.seedQuiz(t, lessons[0].ID, 3)
	tok := f.token(t, 1, model.Student)

	w, _ := f.do(t, http.MethodPost, "/api/quiz-attempts", tok, map[string]interface{}{"quizId": quiz.ID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing answers, got %d", w.Code)
	}

	w, _ = f.do(t, http.MethodPost, "/api/quiz-attempts", tok, map[string]interface{}{
		"quizId":  9999,
		"answers": []map[string]interface{}{{"questionId": 1, "answer": true}},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown quiz, got %d", w.Code)
	}
}

func TestUpdateLessonProgress(t *testing.T) {
	f := newFixture(t)
	course, lessons := f.seed(t, 1)
	tok := f.token(t, 2, model.Student)
	body := map[string]interface{}{"lessonId": lessons[0].ID, "courseId": course.ID, "timeWatched": 120, "completed": true}

	w, _ := f.do(t, http.MethodPost, "/api/progress/lesson", tok, body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when not enrolled, got %d", w.Code)
	}

	f.enrollUser(t, 2, course.ID)
	w, env := f.do(t, http.MethodPost, "/api/progress/lesson", tok, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var snap service.ProgressSnapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if !snap.IsCompleted || snap.ProgressPercentage != 100 || snap.TimeSpentMinutes != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if len(snap.NewAchievements) == 0 || snap.NewAchievements[0].BadgeURL == "" {
		t.Fatalf("expected achievements with badge urls, got %+v", snap.NewAchievements)
	}

	body["timeWatched"] = -1
	w, _ = f.do(t, http.MethodPost, "/api/progress/lesson", tok, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative time, got %d", w.Code)
	}

	w, env = f.do(t, http.MethodGet, "/api/achievements", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list []model.Achievement
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode achievements: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 achievements, got %d", len(list))
	}
}

func TestLessonAccess(t *testing.T) {
	f := newFixture(t)
	course, lessons := f.seed(t, 2)
	f.enrollUser(t, 3, course.ID)
	tok := f.token(t, 3, model.Student)

	w, env := f.do(t, http.MethodGet, fmt.Sprintf("/api/courses/%d/lessons/%d", course.ID, lessons[1].ID), tok, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for locked lesson, got %d", w.Code)
	}
	if env.Message != util.ErrLessonLocked.Error() {
		t.Fatalf("unexpected message %q", env.Message)
	}

	w, _ = f.do(t, http.MethodGet, fmt.Sprintf("/api/courses/%d/lessons/%d", course.ID, lessons[0].ID), tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for first lesson, got %d", w.Code)
	}

	w, _ = f.do(t, http.MethodGet, fmt.Sprintf("/api/courses/%d/lessons/abc", course.ID), tok, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}

	w, env = f.do(t, http.MethodGet, fmt.Sprintf("/api/courses/%d/lessons", course.ID), tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view service.CourseLessons
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode lessons: %v", err)
	}
	if view.TotalLessons != 2 || !view.Lessons[0].CanAccess || view.Lessons[1].CanAccess {
		t.Fatalf("unexpected lessons view: %+v", view)
	}
}

func TestQuizEndpoints_RolesAndAnswerStripping(t *testing.T) {
	f := newFixture(t)
	_, lessons := f.seed(t, 1)
	student := f.token(t, 4, model.Student)
	teacher := f.token(t, 5, model.Teacher)

	req := map[string]interface{}{
		"lessonId": lessons[0].ID,
		"title":    "Checkpoint",
		"questions": []map[string]interface{}{
			{"type": "true-false", "question": "ok?", "correctAnswer": true, "points": 1, "explanation": "because"},
		},
	}
	w, env := f.do(t, http.MethodPost, "/api/quizzes", student, req)
	if w.Code != http.StatusForbidden || env.Message != util.ErrPermissionDenied.Error() {
		t.Fatalf("expected 403 permission denied for student, got %d %q", w.Code, env.Message)
	}
	w, _ = f.do(t, http.MethodPost, "/api/quizzes", teacher, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for teacher, got %d: %s", w.Code, w.Body.String())
	}
	w, _ = f.do(t, http.MethodPost, "/api/quizzes", teacher, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second quiz on lesson, got %d", w.Code)
	}

	w, env = f.do(t, http.MethodGet, fmt.Sprintf("/api/quizzes/lesson/%d", lessons[0].ID), student, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if bytes.Contains(env.Data, []byte("correctAnswer")) || bytes.Contains(env.Data, []byte("because")) {
		t.Fatalf("student view leaked answers: %s", env.Data)
	}

	_, env = f.do(t, http.MethodGet, fmt.Sprintf("/api/quizzes/lesson/%d", lessons[0].ID), teacher, nil)
	if !bytes.Contains(env.Data, []byte("correctAnswer")) {
		t.Fatalf("teacher view should include answers: %s", env.Data)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	w, env := f.do(t, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(env.Data, []byte(`"redis":"disabled"`)) {
		t.Fatalf("unexpected components: %s", env.Data)
	}
	if w.Header().Get(util.RequestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}
