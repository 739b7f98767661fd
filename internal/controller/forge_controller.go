package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"questforge_backend/internal/model"
	"questforge_backend/internal/repository"
	"questforge_backend/internal/service"
	"questforge_backend/internal/util"
	"questforge_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ForgeController 模块锻造接口。锻造本身无副作用，
// 归档（对象存储 + 元数据索引）在这里完成。
type ForgeController struct {
	ForgeService *service.ForgeService
	Storage      *service.StorageService
	ModuleRepo   *repository.ModuleRepository
}

func NewForgeController(forgeService *service.ForgeService, storage *service.StorageService, moduleRepo *repository.ModuleRepository) *ForgeController {
	return &ForgeController{
		ForgeService: forgeService,
		Storage:      storage,
		ModuleRepo:   moduleRepo,
	}
}

// swagger:model ForgeModuleRequest
type ForgeModuleRequest struct {
	Topic string `json:"topic" binding:"required"`
}

// ForgeModule godoc
// @Summary 锻造学习模块
// @Description 根据主题生成结构化学习模块（大纲、测验、推荐资源）
// @Tags 锻造
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body ForgeModuleRequest true "学习主题"
// @Success 201 {object} util.Response{data=object} "生成成功"
// @Failure 400 {object} util.Response "主题为空"
// @Failure 502 {object} util.Response "生成失败或输出未通过校验"
// @Router /api/forge/modules [post]
func (c *ForgeController) ForgeModule(ctx *gin.Context) {
	var req ForgeModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	module, err := c.ForgeService.Forge(ctx.Request.Context(), req.Topic)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	archive := c.archive(ctx, req.Topic, module)

	util.Created(ctx, gin.H{
		"module":  module,
		"archive": archive,
	})
}

// archive 把模块正文写入对象存储并登记元数据。归档失败只记日志，
// 不影响已生成模块的返回。
func (c *ForgeController) archive(ctx *gin.Context, topic string, module *service.LearningModule) gin.H {
	if !c.Storage.Enabled() {
		return nil
	}

	payload, err := json.Marshal(module)
	if err != nil {
		logger.Log.Error("failed to marshal module for archive", zap.Error(err))
		return nil
	}

	record := &model.ForgedModule{
		Topic: topic,
	}
	record.ID = model.GenerateUUID()
	record.ObjectKey = fmt.Sprintf("modules/%s.json", record.ID)
	if claims := util.GetUserFromContext(ctx); claims != nil {
		record.CreatedBy = claims.UserID
	}

	if err := c.Storage.PutJSON(ctx.Request.Context(), record.ObjectKey, payload); err != nil {
		logger.Log.Error("failed to archive module payload", zap.String("key", record.ObjectKey), zap.Error(err))
		return nil
	}

	if err := c.ModuleRepo.Create(record); err != nil {
		logger.Log.Error("failed to index archived module", zap.String("id", record.ID), zap.Error(err))
		return nil
	}

	return gin.H{"id": record.ID, "objectKey": record.ObjectKey}
}

// ListModules godoc
// @Summary 最近锻造的模块
// @Description 按时间倒序列出最近归档的学习模块元数据
// @Tags 锻造
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.ForgedModule} "成功"
// @Router /api/forge/modules [get]
func (c *ForgeController) ListModules(ctx *gin.Context) {
	modules, err := c.ModuleRepo.ListRecent(20)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, modules)
}

// GetModule godoc
// @Summary 读取归档模块
// @Description 按ID取回归档的学习模块正文
// @Tags 锻造
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "模块ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 404 {object} util.Response "模块不存在"
// @Router /api/forge/modules/{id} [get]
func (c *ForgeController) GetModule(ctx *gin.Context) {
	record, err := c.ModuleRepo.FindByID(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	if !c.Storage.Enabled() {
		util.Error(ctx, 404, "模块归档未启用")
		return
	}

	payload, err := c.Storage.GetJSON(ctx.Request.Context(), record.ObjectKey)
	if err != nil {
		logger.Log.Error("failed to fetch archived module", zap.String("key", record.ObjectKey), zap.Error(err))
		util.NotFound(ctx)
		return
	}

	var module service.LearningModule
	if err := json.Unmarshal(payload, &module); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"topic":     record.Topic,
		"createdAt": record.CreatedAt,
		"module":    module,
	})
}
