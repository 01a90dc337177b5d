package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/danastri/meetscribe/internal/api/handlers"
	"github.com/danastri/meetscribe/internal/api/middleware"
)

type Deps struct {
	Auth       *handlers.AuthHandler
	Transcript *handlers.TranscriptHandler
	Bot        *handlers.BotHandler
	WS         *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/auth/register", d.Auth.Register)
	r.POST("/auth/login", d.Auth.Login)

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/transcripts", d.Transcript.Upload)
	auth.GET("/transcripts", d.Transcript.List)
	auth.GET("/transcripts/:id", d.Transcript.Get)
	auth.GET("/transcripts/:id/audio", d.Transcript.Audio)
	auth.DELETE("/transcripts/:id", d.Transcript.Delete)

	auth.POST("/bots", d.Bot.Deploy)
	auth.GET("/bots", d.Bot.List)
	auth.GET("/bots/:session_id", d.Bot.Status)
	auth.POST("/bots/:session_id/stop", d.Bot.Stop)

	// WebSocket
	auth.GET("/ws/bots/:session_id/status", d.WS.BotStatusWS)
	auth.GET("/ws/transcripts/:id/status", d.WS.TranscriptStatusWS)
}
