package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/docusense/docchat/internal/rag"
	"github.com/docusense/docchat/internal/session"
)

// ChatHandler answers a question against a previously uploaded document.
type ChatHandler struct {
	Store session.Store
	RAG   *rag.Service
}

type ChatRequest struct {
	Message     string     `json:"message"`
	FileID      string     `json:"fileId"`
	ChatHistory []rag.Turn `json:"chatHistory"`
}

type ChatResponse struct {
	Response  string `json:"response"`
	Timestamp int64  `json:"timestamp"`
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request payload")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.FileID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "fileId is required")
	}

	ctx := c.Request().Context()
	sess, err := h.Store.Touch(ctx, req.FileID)
	if err != nil {
		return err
	}

	answer, err := h.RAG.Answer(ctx, sess.Index, req.Message, req.ChatHistory)
	if err != nil {
		return err
	}

	chatsTotal.Inc()
	return c.JSON(http.StatusOK, ChatResponse{Response: answer, Timestamp: time.Now().UnixMilli()})
}
