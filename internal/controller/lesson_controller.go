package controller

import (
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LessonController struct {
	LessonService *service.LessonService
}

func NewLessonController(lessonService *service.LessonService) *LessonController {
	return &LessonController{LessonService: lessonService}
}

// @Summary 课程课时列表
// @Description 按顺序返回课时及每课的解锁状态
// @Tags 课时
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseLessons}
// @Failure 403 {object} util.Response "未选课"
// @Router /courses/{courseId}/lessons [get]
func (c *LessonController) GetCourseLessons(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID, err := util.ParamID(ctx, "courseId")
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lessons, err := c.LessonService.CourseLessons(ctx.Request.Context(), user.UserID, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, lessons)
}

// @Summary 获取课时
// @Description 前一课未完成时返回 403
// @Tags 课时
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Param lessonId path int true "课时ID"
// @Success 200 {object} util.Response{data=service.LessonDetail}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /courses/{courseId}/lessons/{lessonId} [get]
func (c *LessonController) GetLesson(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID, err := util.ParamID(ctx, "courseId")
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	lessonID, err := util.ParamID(ctx, "lessonId")
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	detail, err := c.LessonService.GetLesson(ctx.Request.Context(), user.UserID, courseID, lessonID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, detail)
}
