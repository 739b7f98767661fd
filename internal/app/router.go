package app

import (
	"questforge_backend/internal/config"
	"questforge_backend/internal/middleware"
	"questforge_backend/internal/model"
	"questforge_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		// 模块锻造
		forge := authGroup.Group("/forge")
		{
			forge.POST("/modules", c.forge.ForgeModule)
			forge.GET("/modules", c.forge.ListModules)
			forge.GET("/modules/:id", c.forge.GetModule)
		}

		// 每日挑战
		challenges := authGroup.Group("/challenges")
		{
			challenges.GET("/daily", c.challenge.GetDaily)
			challenges.POST("/daily/grade", c.challenge.GradeDaily)
		}

		// 王国战报（导师与管理员）
		authGroup.GET("/reports/kingdom", middleware.RoleMiddleware(model.Mentor, model.Admin), c.report.GetKingdomReport)

		// 进度账本
		progression := authGroup.Group("/progression")
		{
			progression.POST("/completions", c.progression.RecordCompletion)
			progression.GET("/leaderboard", c.progression.GetLeaderboard)
			progression.GET("/stats", c.progression.GetUserStats)
		}
	}
}
