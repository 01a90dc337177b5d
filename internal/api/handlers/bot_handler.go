package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/danastri/meetscribe/internal/services"
	"github.com/danastri/meetscribe/internal/utils"
)

type BotHandler struct {
	svc services.BotService
}

func NewBotHandler(svc services.BotService) *BotHandler {
	return &BotHandler{svc: svc}
}

type DeployBotRequest struct {
	MeetingLink string `json:"meeting_link" binding:"required"`
	BotName     string `json:"bot_name"`
	Language    string `json:"language"`
}

func (h *BotHandler) Deploy(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req DeployBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "BotHandler.Deploy", "invalid request body", err))
		return
	}

	session, err := h.svc.Deploy(c.Request.Context(), userID, req.MeetingLink, req.BotName, req.Language)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, session)
}

func (h *BotHandler) Status(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	session, err := h.svc.Status(c.Request.Context(), userID, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *BotHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessions, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": sessions})
}

func (h *BotHandler) Stop(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	session, err := h.svc.Stop(c.Request.Context(), userID, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
