package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/docusense/docchat/internal/ingest"
	"github.com/docusense/docchat/internal/rag"
	"github.com/docusense/docchat/internal/session"
	"github.com/docusense/docchat/provider"
)

// SummarizeHandler ingests an uploaded PDF, creates its session and returns
// a summary plus the fileId used for follow-up chat.
type SummarizeHandler struct {
	Store     session.Store
	Provider  provider.Provider
	RAG       *rag.Service
	Ingester  *ingest.Ingester
	UploadDir string
	MaxSize   int64
}

type SummarizeResponse struct {
	Summary string `json:"summary"`
	FileID  string `json:"fileId"`
}

func (h *SummarizeHandler) Register(g *echo.Group) {
	g.POST("/summarize", h.summarize)
}

func (h *SummarizeHandler) summarize(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if h.MaxSize > 0 && file.Size > h.MaxSize {
		return fmt.Errorf("upload of %d bytes: %w", file.Size, ingest.ErrTooLarge)
	}
	if !ingest.IsPDF(file.Filename) {
		return fmt.Errorf("upload %q: %w", file.Filename, ingest.ErrNotPDF)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}

	ctx := c.Request().Context()
	chunks, err := h.Ingester.Ingest(data)
	if err != nil {
		return err
	}
	vectors, err := h.Provider.Embed(ctx, chunks)
	if err != nil {
		return err
	}

	// the file becomes visible to eviction only once Put succeeds, so the
	// sweep can never race an ingestion of the same key
	fileID := uuid.NewString()
	path := filepath.Join(h.UploadDir, fileID+".pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("storing upload: %w", err)
	}
	if err := h.Store.Put(ctx, fileID, chunks, vectors, path); err != nil {
		_ = os.Remove(path)
		return err
	}

	summary, err := h.RAG.Summarize(ctx, chunks)
	if err != nil {
		return err
	}

	uploadsTotal.Inc()
	return c.JSON(http.StatusOK, SummarizeResponse{Summary: summary, FileID: fileID})
}
