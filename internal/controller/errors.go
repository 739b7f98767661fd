package controller

import (
	"errors"
	"net/http"
	"questforge_backend/internal/contract"
	"questforge_backend/internal/service"
	"questforge_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// respondServiceError 把核心服务的类型化错误翻译成HTTP响应：
// invalid_input/invalid_score → 400，user_not_found → 404，
// generation_failed/malformed_output → 502，其余按500兜底。
func respondServiceError(ctx *gin.Context, err error) {
	var forgeErr *service.ForgeError
	if errors.As(err, &forgeErr) {
		respondKind(ctx, forgeErr.Kind, forgeErr.Violations)
		return
	}

	var gradeErr *service.GradeError
	if errors.As(err, &gradeErr) {
		respondKind(ctx, gradeErr.Kind, gradeErr.Violations)
		return
	}

	var reportErr *service.ReportError
	if errors.As(err, &reportErr) {
		respondKind(ctx, reportErr.Kind, reportErr.Violations)
		return
	}

	var ledgerErr *service.LedgerError
	if errors.As(err, &ledgerErr) {
		respondKind(ctx, ledgerErr.Kind, nil)
		return
	}

	util.LogInternalError(ctx, err)
}

func respondKind(ctx *gin.Context, kind service.ErrorKind, violations []contract.Violation) {
	switch kind {
	case service.KindInvalidInput:
		util.BadRequest(ctx, "请求参数非法")
	case service.KindInvalidScore:
		util.BadRequest(ctx, "分数超出有效范围")
	case service.KindUserNotFound:
		util.NotFound(ctx)
	case service.KindGenerationFailed:
		util.BadGateway(ctx, "生成服务暂不可用，请稍后重试")
	case service.KindMalformedOutput:
		ctx.JSON(http.StatusBadGateway, util.Response{
			Code:    http.StatusBadGateway,
			Message: "生成内容未通过校验，请重试",
			Data:    gin.H{"violations": violations},
		})
	default:
		util.InternalServerError(ctx)
	}
}
