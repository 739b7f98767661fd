package controller

import (
	"questforge_backend/internal/service"
	"questforge_backend/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

// ChallengeController 每日挑战接口。答对才记入进度账本，
// 当天可以反复尝试直到答对为止。
type ChallengeController struct {
	ChallengeService   *service.ChallengeService
	ProgressionService *service.ProgressionService
}

func NewChallengeController(challengeService *service.ChallengeService, progressionService *service.ProgressionService) *ChallengeController {
	return &ChallengeController{
		ChallengeService:   challengeService,
		ProgressionService: progressionService,
	}
}

// GetDaily godoc
// @Summary 获取今日挑战
// @Description 返回今天的每日挑战题，缺失时现场生成
// @Tags 挑战
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.DailyChallenge} "成功"
// @Failure 502 {object} util.Response "生成失败"
// @Router /api/challenges/daily [get]
func (c *ChallengeController) GetDaily(ctx *gin.Context) {
	challenge, err := c.ChallengeService.GetDaily(ctx.Request.Context(), time.Now())
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	util.Success(ctx, challenge)
}

// swagger:model GradeAnswerRequest
type GradeAnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// GradeDaily godoc
// @Summary 提交今日挑战答案
// @Description 对答案评卷；答对时记入进度账本并发放经验（每天最多一次）
// @Tags 挑战
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body GradeAnswerRequest true "考生答案"
// @Success 200 {object} util.Response{data=object} "评卷结论"
// @Failure 400 {object} util.Response "答案为空"
// @Failure 502 {object} util.Response "评卷失败"
// @Router /api/challenges/daily/grade [post]
func (c *ChallengeController) GradeDaily(ctx *gin.Context) {
	var req GradeAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	now := time.Now()
	challenge, err := c.ChallengeService.GetDaily(ctx.Request.Context(), now)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	result, err := c.ChallengeService.Grade(ctx.Request.Context(), challenge, req.Answer)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	resp := gin.H{
		"isCorrect":   result.IsCorrect,
		"explanation": result.Explanation,
	}

	// 只有答对才记账，答错不消耗当天的完成资格
	if result.IsCorrect {
		claims := util.GetUserFromContext(ctx)
		if claims != nil {
			questID := "daily:" + challenge.ChallengeDate
			completion, err := c.ProgressionService.RecordCompletion(ctx.Request.Context(), claims.UserID, questID, 1, 1)
			if err != nil {
				respondServiceError(ctx, err)
				return
			}
			resp["xpGained"] = completion.XPGained
			resp["alreadyCompleted"] = completion.AlreadyCompleted
		}
	}

	util.Success(ctx, resp)
}
