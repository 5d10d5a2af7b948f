package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/docchat/internal/embed"
	"github.com/mohammad-safakhou/docchat/internal/search"
	"github.com/mohammad-safakhou/docchat/internal/session"
)

// SessionsHandler serves the session lifecycle: intake, status, query,
// teardown.
type SessionsHandler struct {
	Manager      *session.Manager
	Engine       *search.Engine
	MaxFileBytes int64
}

func (h *SessionsHandler) Register(g *echo.Group) {
	g.POST("/sessions", h.create)
	g.POST("/sessions/:id/documents", h.upload)
	g.GET("/sessions/:id", h.status)
	g.POST("/sessions/:id/query", h.query)
	g.DELETE("/sessions/:id", h.teardown)
}

// UploadResponse acknowledges an accepted batch; indexing continues in the
// background and progress is visible via status.
type UploadResponse struct {
	SessionID string `json:"session_id"`
	Files     int    `json:"files"`
	State     string `json:"state"`
}

// QueryRequest is the body of POST /sessions/:id/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// create starts a new session from an uploaded batch.
func (h *SessionsHandler) create(c echo.Context) error {
	return h.accept(c, "")
}

// upload adds documents to an existing session.
func (h *SessionsHandler) upload(c echo.Context) error {
	return h.accept(c, c.Param("id"))
}

func (h *SessionsHandler) accept(c echo.Context, sessionID string) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}
	parts := form.File["files"]
	if len(parts) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files in field \"files\"")
	}
	files := make([]session.UploadFile, 0, len(parts))
	for _, fh := range parts {
		if !isPDF(fh) {
			return echo.NewHTTPError(http.StatusBadRequest, "only PDF files are accepted: "+fh.Filename)
		}
		data, err := readPart(fh, h.MaxFileBytes)
		if err != nil {
			return httpError(err)
		}
		files = append(files, session.UploadFile{Name: fh.Filename, Data: data})
	}

	id, err := h.Manager.Upload(sessionID, files)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, UploadResponse{SessionID: id, Files: len(files), State: string(session.StateIndexing)})
}

func (h *SessionsHandler) status(c echo.Context) error {
	st, err := h.Manager.Status(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *SessionsHandler) query(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.Engine.Query(c.Request().Context(), c.Param("id"), req.Query)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *SessionsHandler) teardown(c echo.Context) error {
	if err := h.Manager.Teardown(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func isPDF(fh *multipart.FileHeader) bool {
	if strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		return true
	}
	return strings.Contains(fh.Header.Get("Content-Type"), "application/pdf")
}

func readPart(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	if maxBytes <= 0 {
		return io.ReadAll(src)
	}
	data, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, session.LimitError{Kind: "file_bytes", Usage: int64(len(data)), Limit: maxBytes}
	}
	return data, nil
}

// httpError maps the pipeline's error taxonomy onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrIndexingInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrIndexNotReady):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrUploadLimit):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, search.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, embed.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
