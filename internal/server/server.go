// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"adresse/internal/domain"
	"adresse/internal/service"
)

// Pipeline is the subset of the extraction service served over HTTP.
type Pipeline interface {
	Extract(ctx context.Context, sentence string) (domain.ExtractionResult, error)
	ExtractBatch(ctx context.Context, sentences []string) []service.BatchItem
}

type Options struct {
	// Health reports whether the model and the store are reachable.
	Health   func(ctx context.Context) error
	Gatherer prometheus.Gatherer
	MaxBatch int
	Logger   *zap.Logger
}

type Server struct {
	pipeline Pipeline
	opts     Options
	logger   *zap.Logger
}

func New(pipeline Pipeline, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 100
	}
	return &Server{pipeline: pipeline, opts: opts, logger: opts.Logger}
}

type extractRequest struct {
	Sentence string `json:"sentence"`
}

type batchRequest struct {
	Sentences []string `json:"sentences" binding:"required"`
}

type batchItem struct {
	Sentence string                   `json:"sentence"`
	Result   *domain.ExtractionResult `json:"result,omitempty"`
	Error    *errorBody               `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.POST("/extract", s.extract)
	v1.POST("/extract/batch", s.extractBatch)
	return r
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) health(c *gin.Context) {
	if s.opts.Health != nil {
		if err := s.opts.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Code: "invalid_request", Message: err.Error()}})
		return
	}
	res, err := s.pipeline.Extract(c.Request.Context(), req.Sentence)
	if err != nil {
		status, body := classify(err)
		c.JSON(status, gin.H{"error": body})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) extractBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Code: "invalid_request", Message: err.Error()}})
		return
	}
	if len(req.Sentences) > s.opts.MaxBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Code: "batch_too_large", Message: "too many sentences"}})
		return
	}
	items := s.pipeline.ExtractBatch(c.Request.Context(), req.Sentences)
	out := make([]batchItem, len(items))
	for i, it := range items {
		out[i].Sentence = it.Sentence
		if it.Err != nil {
			_, body := classify(it.Err)
			out[i].Error = &body
			continue
		}
		res := it.Result
		out[i].Result = &res
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

// classify maps pipeline errors onto HTTP statuses.
func classify(err error) (int, errorBody) {
	body := errorBody{Code: service.Outcome(err), Message: err.Error()}
	switch {
	case errors.Is(err, domain.ErrEmptyRequest):
		return http.StatusBadRequest, body
	case errors.Is(err, domain.ErrParse):
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, domain.ErrNormalizationUnavailable):
		return http.StatusServiceUnavailable, body
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, body
	default:
		return http.StatusBadGateway, body
	}
}
