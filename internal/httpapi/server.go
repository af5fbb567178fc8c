// Package httpapi exposes the engine's add-file, search, PDF-download, and
// delete operations over HTTP, mapping the core's error kinds onto the
// status codes of the external HTTP contract.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reis-engine/internal/blobstore"
	"github.com/fyrsmithlabs/reis-engine/internal/engine"
	"github.com/fyrsmithlabs/reis-engine/internal/formatprovider"
	"github.com/fyrsmithlabs/reis-engine/internal/logging"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// MetricsEnabled mounts the Prometheus scrape endpoint at /metrics.
	MetricsEnabled bool
	// TempRoot is the directory under which uploaded-file temp scopes are created.
	TempRoot string
	// ServiceName is reported on the health endpoint.
	ServiceName string
	// ShutdownTimeout bounds how long Start waits for in-flight requests to
	// finish once its context is cancelled.
	ShutdownTimeout time.Duration
}

// healthResponse is the JSON body of GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Server exposes the engine's operations as HTTP routes.
type Server struct {
	echo   *echo.Echo
	engine *engine.Engine
	logger *logging.Logger
	config Config
}

// NewServer builds a Server wired to eng, with the given logging and config.
func NewServer(eng *engine.Engine, logger *logging.Logger, cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	s := &Server{echo: e, engine: eng, logger: logger, config: cfg}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/files", s.handleAddFile)
	s.echo.GET("/files", s.handleSearch)
	s.echo.GET("/documents/pdf", s.handleGetPDF)
	s.echo.DELETE("/files/:doc_id", s.handleDeleteFile)
}

// handleHealth implements GET /health.
func (s *Server) handleHealth(c echo.Context) error {
	name := s.config.ServiceName
	if name == "" {
		name = "reis-engine"
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Service: name})
}

// Start listens on the configured host/port and blocks until ctx is
// cancelled, at which point it drains in-flight requests within
// ShutdownTimeout before returning. Returns http.ErrServerClosed on a clean
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Host + ":" + strconv.Itoa(s.config.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("httpapi: listen on %s: %w", addr, err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpapi: shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo exposes the underlying echo instance, e.g. for tests driving requests
// directly without a listening socket.
func (s *Server) Echo() *echo.Echo { return s.echo }

// handleAddFile implements POST /files: body is the file bytes; headers
// bucket, id, fileName, fileMimeType, indexName carry ingestion parameters.
func (s *Server) handleAddFile(c echo.Context) error {
	req := c.Request()
	bucket := req.Header.Get("bucket")
	docID := req.Header.Get("id")
	fileName := req.Header.Get("fileName")
	mimeType := req.Header.Get("fileMimeType")
	indexName := req.Header.Get("indexName")

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("reading request body: "+err.Error()))
	}

	scope, err := sourcefile.TempFile(s.config.TempRoot, body, "", mimeType, fileName)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
	}
	defer scope.Close()
	scope.File.ID = docID

	if err := s.engine.AddFile(req.Context(), scope.File, bucket, docID, indexName); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// searchResponse wraps Source DTOs under the "sources" key per the external
// HTTP contract.
type searchResponse struct {
	Sources []engine.Source `json:"sources"`
}

// handleSearch implements GET /files?query&bucket&take&indexName.
func (s *Server) handleSearch(c echo.Context) error {
	query := c.QueryParam("query")
	bucket := c.QueryParam("bucket")
	indexName := c.QueryParam("indexName")
	take := 10
	if v := c.QueryParam("take"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, errorBody("take must be a positive integer"))
		}
		take = parsed
	}

	sources, err := s.engine.Search(c.Request().Context(), query, bucket, take, nil, indexName)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, searchResponse{Sources: sources})
}

// handleGetPDF implements GET /documents/pdf?doc_id.
func (s *Server) handleGetPDF(c echo.Context) error {
	docID := c.QueryParam("doc_id")
	if docID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("doc_id is required"))
	}

	file, err := s.engine.GetDocumentPDF(c.Request().Context(), docID)
	if err != nil {
		return writeError(c, err)
	}
	if file == nil {
		return c.JSON(http.StatusNotFound, errorBody("pdf not found"))
	}
	defer file.Delete()

	return c.Inline(file.Path, file.FileName)
}

// handleDeleteFile implements DELETE /files/{doc_id}?indexName.
func (s *Server) handleDeleteFile(c echo.Context) error {
	docID := c.Param("doc_id")
	indexName := c.QueryParam("indexName")

	if err := s.engine.DeleteFile(c.Request().Context(), docID, indexName); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

type errorResponse struct {
	Message string `json:"message"`
}

func errorBody(msg string) errorResponse { return errorResponse{Message: msg} }

// writeError maps an orchestration error onto the HTTP status codes of the
// external error-kind contract.
func writeError(c echo.Context, err error) error {
	var unsupported *formatprovider.ErrUnsupported
	if errors.As(err, &unsupported) {
		return c.JSON(http.StatusUnsupportedMediaType, errorBody(err.Error()))
	}

	var processing *formatprovider.ProcessingError
	if errors.As(err, &processing) {
		status := processing.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		return c.JSON(status, errorBody(processing.Message))
	}

	var conversion *formatprovider.ConversionError
	if errors.As(err, &conversion) {
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}

	var pathEscape *sourcefile.ErrPathEscape
	if errors.As(err, &pathEscape) {
		return c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
	}

	if errors.Is(err, blobstore.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorBody(err.Error()))
	}

	return c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
}
