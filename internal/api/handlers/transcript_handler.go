package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/danastri/meetscribe/internal/models"
	"github.com/danastri/meetscribe/internal/services"
	"github.com/danastri/meetscribe/internal/utils"
)

type TranscriptHandler struct {
	svc services.TranscriptService
}

func NewTranscriptHandler(svc services.TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{svc: svc}
}

// Upload accepts a multipart audio file and queues it for transcription.
func (h *TranscriptHandler) Upload(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "TranscriptHandler.Upload", "audio file is required", err))
		return
	}
	language := c.PostForm("language")

	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "TranscriptHandler.Upload", "failed to read audio file", err))
		return
	}
	defer f.Close()

	tr, err := h.svc.CreateFromUpload(c.Request.Context(), userID, fh.Filename, f, language)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, tr)
}

func (h *TranscriptHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := transcriptID(c)
	if !ok {
		return
	}

	tr, err := h.svc.Get(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

type ListTranscriptsResponse struct {
	Items []models.Transcript `json:"items"`
	Total int64               `json:"total"`
}

func (h *TranscriptHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, total, err := h.svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListTranscriptsResponse{Items: rows, Total: total})
}

// Audio returns a short-lived signed URL for the archived recording.
func (h *TranscriptHandler) Audio(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := transcriptID(c)
	if !ok {
		return
	}

	url, err := h.svc.AudioURL(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *TranscriptHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := transcriptID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), userID, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func transcriptID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, "TranscriptHandler", "invalid transcript id", err))
		return 0, false
	}
	return uint(id), true
}
