package controller

import (
	"questforge_backend/internal/service"
	"questforge_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ReportController struct {
	ReportService *service.ReportService
	KingdomSource *service.KingdomDataSource
}

func NewReportController(reportService *service.ReportService, kingdomSource *service.KingdomDataSource) *ReportController {
	return &ReportController{
		ReportService: reportService,
		KingdomSource: kingdomSource,
	}
}

// GetKingdomReport godoc
// @Summary 王国战报
// @Description 聚合王国当前数据生成叙事战报；部分数据缺失时降级而非失败
// @Tags 战报
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.NarrativeReport} "成功"
// @Failure 502 {object} util.Response "生成失败"
// @Router /api/reports/kingdom [get]
func (c *ReportController) GetKingdomReport(ctx *gin.Context) {
	report, err := c.ReportService.AggregateReport(ctx.Request.Context(), c.KingdomSource)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	util.Success(ctx, report)
}
