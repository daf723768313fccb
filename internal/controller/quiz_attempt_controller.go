package controller

import (
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizAttemptController struct {
	AttemptService *service.QuizAttemptService
}

func NewQuizAttemptController(attemptService *service.QuizAttemptService) *QuizAttemptController {
	return &QuizAttemptController{AttemptService: attemptService}
}

// @Summary 提交测验
// @Description 判分并记录一次测验尝试，通过后自动完成所属课时
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.SubmitAttemptRequest true "作答内容"
// @Success 201 {object} util.Response{data=service.AttemptResult}
// @Failure 400 {object} util.Response "参数错误或尝试次数已用完"
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /quiz-attempts [post]
func (c *QuizAttemptController) SubmitAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmitAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.RecordAttempt(ctx.Request.Context(), user.UserID, req.QuizID, req.Answers, req.TimeSpent)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, "Quiz attempt submitted successfully", result)
}

// @Summary 测验尝试记录
// @Description 当前用户在某测验上的全部尝试，最新的在前
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param quizId path int true "测验ID"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /quiz-attempts/{quizId} [get]
func (c *QuizAttemptController) ListAttempts(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	quizID, err := util.ParamID(ctx, "quizId")
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempts, err := c.AttemptService.ListAttempts(ctx.Request.Context(), user.UserID, quizID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, attempts)
}
