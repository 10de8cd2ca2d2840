package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"planner/pkg/mq"
)

type Router struct {
	Engine *gin.Engine
}

type Handlers struct {
	Auth        *AuthHandler
	Project     *ProjectHandler
	Board       *BoardHandler
	Deliverable *DeliverableHandler
	Assistant   *AssistantHandler
	Transcribe  *TranscribeHandler
	Profile     *ProfileHandler
}

func NewRouter(h Handlers, jwtSecret string, logger *zap.Logger, db *pgxpool.Pool, consumer *mq.Consumer) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(RequestLogMiddleware(logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		if consumer != nil && !consumer.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", h.Auth.Register)
	r.POST("/login", h.Auth.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/projects", h.Project.Create)
		auth.GET("/projects", h.Project.List)
		auth.GET("/projects/:id/history", h.Project.History)
		auth.GET("/projects/:id/summary", h.Project.Summary)

		auth.GET("/board", h.Board.Get)

		auth.POST("/deliverables", h.Deliverable.Create)
		auth.GET("/deliverables", h.Deliverable.List)
		auth.PUT("/deliverables/:id", h.Deliverable.Edit)
		auth.POST("/deliverables/:id/complete", h.Deliverable.Complete)
		auth.POST("/deliverables/:id/reopen", h.Deliverable.Reopen)
		auth.POST("/deliverables/:id/toggle", h.Deliverable.Toggle)
		auth.POST("/deliverables/:id/reports", h.Deliverable.AddReport)
		auth.GET("/deliverables/:id/reports", h.Deliverable.Reports)

		auth.POST("/assistant/sessions", h.Assistant.CreateSession)
		auth.GET("/assistant/sessions/:id", h.Assistant.GetSession)
		auth.DELETE("/assistant/sessions/:id", h.Assistant.DeleteSession)
		auth.PUT("/assistant/sessions/:id/draft", h.Assistant.SetDraft)
		auth.POST("/assistant/sessions/:id/capture/start", h.Assistant.StartCapture)
		auth.POST("/assistant/sessions/:id/capture/finish", h.Assistant.FinishCapture)
		auth.POST("/assistant/sessions/:id/capture/cancel", h.Assistant.CancelCapture)
		auth.POST("/assistant/sessions/:id/preview", h.Assistant.RequestPreview)
		auth.POST("/assistant/sessions/:id/preview/apply", h.Assistant.ApplyPreview)
		auth.POST("/assistant/sessions/:id/preview/dismiss", h.Assistant.DismissPreview)

		auth.POST("/transcribe", h.Transcribe.Transcribe)

		auth.GET("/profile", h.Profile.Get)
		auth.PUT("/profile", h.Profile.Update)
	}

	return &Router{Engine: r}
}
