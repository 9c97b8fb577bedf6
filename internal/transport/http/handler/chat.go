package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/model"
	"docchat/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type ChatRequest struct {
	SessionID string `json:"session_id" binding:"max=64"`
	Message   string `json:"message" binding:"required"`
}

type HistoryResponse struct {
	SessionID string       `json:"session_id"`
	History   []model.Turn `json:"history"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), app.SendMessageInput{
		SessionID: req.SessionID,
		Content:   req.Message,
	})
	if err != nil {
		writeError(c, err, "chat failed")
		return
	}
	response.OK(c, result)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeError(c, err, "list sessions failed")
		return
	}
	page, err := h.chatService.ListSessions(c.Request.Context(), c.Query("cursor"), limit)
	if err != nil {
		writeError(c, err, "list sessions failed")
		return
	}
	response.OK(c, page)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	sessionID := c.Param("session_id")
	history, err := h.chatService.History(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err, "get history failed")
		return
	}
	response.OK(c, HistoryResponse{SessionID: sessionID, History: history})
}

func (h *ChatHandler) RemoveSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.chatService.DeleteSession(c.Request.Context(), sessionID); err != nil {
		writeError(c, err, "remove session failed")
		return
	}
	response.OK(c, gin.H{"message": "session " + sessionID + " removed."})
}
