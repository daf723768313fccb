package controller

import (
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// @Summary 更新课时进度
// @Description 累计观看时长，可选标记课时完成；课程全部完成时颁发成就
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.LessonProgressRequest true "进度"
// @Success 200 {object} util.Response{data=service.ProgressSnapshot}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response "未选课"
// @Router /progress/lesson [post]
func (c *ProgressController) UpdateLessonProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.LessonProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	snapshot, err := c.ProgressService.ApplyLessonProgress(ctx.Request.Context(), service.LessonProgressInput{
		UserID:             user.UserID,
		CourseID:           req.CourseID,
		LessonID:           req.LessonID,
		TimeWatchedSeconds: req.TimeWatched,
		MarkCompleted:      req.Completed,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.SuccessWithMessage(ctx, "Progress updated successfully", snapshot)
}

// @Summary 获取课程进度
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.ProgressSnapshot}
// @Failure 403 {object} util.Response "未选课"
// @Router /progress/course/{courseId} [get]
func (c *ProgressController) GetCourseProgress(ctx *gin.Context) {
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

	snapshot, err := c.ProgressService.GetCourseProgress(ctx.Request.Context(), user.UserID, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, snapshot)
}
