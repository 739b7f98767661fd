package controller

import (
	"questforge_backend/internal/service"
	"questforge_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ProgressionController struct {
	ProgressionService *service.ProgressionService
}

func NewProgressionController(progressionService *service.ProgressionService) *ProgressionController {
	return &ProgressionController{ProgressionService: progressionService}
}

// swagger:model RecordCompletionRequest
type RecordCompletionRequest struct {
	QuestID string `json:"questId" binding:"required"`
	Score   int    `json:"score"`
	Total   int    `json:"total" binding:"required"`
}

// RecordCompletion godoc
// @Summary 登记任务完成
// @Description 记录一次任务完成并按得分比例发放经验；重复提交返回alreadyCompleted
// @Tags 进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body RecordCompletionRequest true "完成信息"
// @Success 200 {object} util.Response{data=service.CompletionResult} "成功"
// @Failure 400 {object} util.Response "分数非法"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/progression/completions [post]
func (c *ProgressionController) RecordCompletion(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req RecordCompletionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ProgressionService.RecordCompletion(ctx.Request.Context(), claims.UserID, req.QuestID, req.Score, req.Total)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// GetLeaderboard godoc
// @Summary 经验排行榜
// @Description 按总经验降序的排行榜，同分先到者在前
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   limit query int false "条数，默认10，上限100"
// @Success 200 {object} util.Response{data=[]service.LeaderboardEntry} "成功"
// @Router /api/progression/leaderboard [get]
func (c *ProgressionController) GetLeaderboard(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))

	entries, err := c.ProgressionService.GetLeaderboard(ctx.Request.Context(), limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, entries)
}

// GetUserStats godoc
// @Summary 我的进度统计
// @Description 当前用户的经验、等级、完成数、名次与连续天数
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.UserStats} "成功"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/progression/stats [get]
func (c *ProgressionController) GetUserStats(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	stats, err := c.ProgressionService.GetUserStats(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	util.Success(ctx, stats)
}
