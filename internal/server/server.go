package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kagaho/Nemo-Guardrails/internal/adapter"
	"github.com/kagaho/Nemo-Guardrails/internal/config"
	"github.com/kagaho/Nemo-Guardrails/internal/translator"
	"github.com/kagaho/Nemo-Guardrails/internal/triton"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
)

type Server struct {
	cfg     config.Config
	adapter *adapter.Adapter
	app     *echo.Echo
	address string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, ad *adapter.Adapter) (*Server, error) {
	if ad == nil {
		return nil, errors.New("adapter must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = adapterErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			requestsTotal.WithLabelValues(c.Path(), strconv.Itoa(v.Status)).Inc()
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))

	srv := &Server{
		cfg:     cfg,
		adapter: ad,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
// The write timeout must exceed the backend generate timeout, otherwise
// slow completions would be cut off mid-response.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg)
	slog.Info("starting server",
		"addr", s.address,
		"triton_base", s.cfg.Triton.BaseURL,
		"triton_model", s.cfg.Triton.Model,
	)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: time.Duration(s.cfg.Triton.TimeoutSeconds+15) * time.Second,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the underlying HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/v1/models", s.handleListModels)
	s.app.POST("/v1/chat/completions", s.handleChatCompletions)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ok":           true,
		"triton_base":  s.cfg.Triton.BaseURL,
		"triton_model": s.cfg.Triton.Model,
	})
}

func (s *Server) handleListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]string{
			{"id": s.adapter.Model(), "object": "model"},
		},
	})
}

func (s *Server) handleChatCompletions(c echo.Context) error {
	var req translator.ChatCompletionRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	resp, err := s.adapter.Handle(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err)
	}

	tritonLatencySeconds.Observe(resp.Usage.LatencySeconds)
	return c.JSON(http.StatusOK, resp)
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid request payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
	Type    string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

// tritonError carries a backend non-200 response through the echo error
// handler so it can be surfaced verbatim.
type tritonError struct {
	Status int
	Body   string
}

func (e tritonError) Error() string {
	return fmt.Sprintf("triton status %d", e.Status)
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType, code string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	payload.Error.Code = code
	return c.JSON(status, payload)
}

func adapterErrorHandler(err error, c echo.Context) {
	var upstreamErr tritonError
	if errors.As(err, &upstreamErr) {
		_ = c.JSON(http.StatusBadGateway, map[string]any{
			"triton_status": upstreamErr.Status,
			"triton_body":   upstreamErr.Body,
		})
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type, reqErr.Code)
		return
	}

	type httpError interface {
		Code() int
		Error() string
	}

	if he, ok := err.(httpError); ok {
		_ = writeError(c, he.Code(), he.Error(), "invalid_request_error", "")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error", "")
}

func toHTTPError(err error) error {
	if errors.Is(err, adapter.ErrStreamingUnsupported) {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "stream=true is not supported by this adapter",
			Type:    "invalid_request_error",
		}
	}

	var statusErr *triton.StatusError
	if errors.As(err, &statusErr) {
		return tritonError{
			Status: statusErr.StatusCode,
			Body:   statusErr.Body,
		}
	}

	return requestError{
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("triton request failed: %v", err),
		Type:    "upstream_error",
	}
}

func printStartupBanner(cfg config.Config) {
	fmt.Println()
	fmt.Println("guardrails adapter ready")
	fmt.Printf("Listening on http://127.0.0.1:%d\n", cfg.Server.Port)
	fmt.Printf("Forwarding to %s/v2/models/%s/generate\n", cfg.Triton.BaseURL, cfg.Triton.Model)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /v1/models")
	fmt.Println("  POST /v1/chat/completions")
	fmt.Println("  GET  /metrics")
	fmt.Printf("Example:\n  curl http://127.0.0.1:%d/v1/chat/completions -H 'Content-Type: application/json' -d '{\"messages\":[{\"role\":\"user\",\"content\":\"hello\"}]}'\n\n", cfg.Server.Port)
}
