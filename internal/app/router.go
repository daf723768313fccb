package app

import (
	"course_engine_backend/docs"
	"course_engine_backend/internal/config"
	"course_engine_backend/internal/middleware"
	"course_engine_backend/internal/model"
	"course_engine_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		registerLearnerRoutes(authGroup, c)

		// 教师相关接口
		teacher := authGroup.Group("")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teacher.POST("/quizzes", c.quiz.CreateQuiz)
		}
	}
}

// registerLearnerRoutes 学生/通用授权接口
func registerLearnerRoutes(r *gin.RouterGroup, c *controllers) {
	r.GET("/quizzes/lesson/:lessonId", c.quiz.GetLessonQuiz)

	r.POST("/quiz-attempts", c.attempt.SubmitAttempt)
	r.GET("/quiz-attempts/:quizId", c.attempt.ListAttempts)

	r.POST("/progress/lesson", c.progress.UpdateLessonProgress)
	r.GET("/progress/course/:courseId", c.progress.GetCourseProgress)

	r.GET("/courses/:courseId/lessons", c.lesson.GetCourseLessons)
	r.GET("/courses/:courseId/lessons/:lessonId", c.lesson.GetLesson)

	r.GET("/achievements", c.achievement.GetUserAchievements)
}
