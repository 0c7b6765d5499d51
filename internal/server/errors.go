package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/docusense/docchat/internal/ingest"
	"github.com/docusense/docchat/internal/session"
	"github.com/docusense/docchat/provider"
)

// httpErrorHandler is the single boundary error translator: every failure
// from below the HTTP layer funnels through here and is mapped to a status
// code and a JSON body. Handlers never write their own error responses.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := "internal server error"

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		msg = fmt.Sprint(he.Message)
	case errors.Is(err, session.ErrNotFound):
		code = http.StatusNotFound
		msg = "document not found or expired, please upload it again"
	case errors.Is(err, ingest.ErrNotPDF):
		code = http.StatusUnsupportedMediaType
		msg = "please upload a PDF file"
	case errors.Is(err, ingest.ErrTooLarge):
		code = http.StatusRequestEntityTooLarge
		msg = fmt.Sprintf("file exceeds the %dMB limit", s.cfg.Uploads.MaxSizeMB)
	case errors.Is(err, ingest.ErrEmptyDocument):
		code = http.StatusBadRequest
		msg = "no text could be extracted from the document"
	case errors.Is(err, provider.ErrUpstream):
		code = http.StatusInternalServerError
		msg = "the language model provider failed, please try again"
		upstreamFailuresTotal.Inc()
	}

	// raw detail is logged server-side; callers only see it in debug mode
	if s.cfg.General.Debug && code == http.StatusInternalServerError {
		msg = err.Error()
	}

	req := c.Request()
	s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}
