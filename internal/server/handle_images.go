package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/labstack/echo/v4"
	"github.com/pictor-io/pictor/internal/remote"
	"github.com/pictor-io/pictor/internal/request"
	"github.com/pictor-io/pictor/internal/server/fail"
	"github.com/pictor-io/pictor/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type imageResponse struct {
	Artifacts       []store.Artifact `json:"artifacts"`
	CacheHit        bool             `json:"cache_hit"`
	Attempts        int              `json:"attempts,omitempty"`
	CostUSD         float64          `json:"cost_usd"`
	OptimizedPrompt string           `json:"optimized_prompt,omitempty"`
}

func (server *Server) handleGenerate(c echo.Context) error {
	return server.handleImageRequest(c, request.KindGenerate)
}

func (server *Server) handleEdit(c echo.Context) error {
	return server.handleImageRequest(c, request.KindEdit)
}

func (server *Server) handleBlend(c echo.Context) error {
	return server.handleImageRequest(c, request.KindBlend)
}

func (server *Server) handleImageRequest(c echo.Context, kind request.Kind) error {
	var raw request.Raw

	if err := render.DecodeJSON(c.Request().Body, &raw); err != nil {
		return fail.Fail(c, http.StatusBadRequest, "malformed-request",
			"failed to read/decode the request JSON: %v", err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), server.requestTimeout)
	defer cancel()

	outcome, err := server.orchestrator.Execute(ctx, kind, &raw)

	server.requestsCounter.Add(c.Request().Context(), 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.Bool("failed", err != nil),
	))

	if err != nil {
		return server.failImageRequest(c, err)
	}

	server.imagesCounter.Add(c.Request().Context(), int64(len(outcome.Artifacts)),
		metric.WithAttributes(attribute.Bool("cache_hit", outcome.CacheHit)))

	return c.JSON(http.StatusOK, &imageResponse{
		Artifacts:       outcome.Artifacts,
		CacheHit:        outcome.CacheHit,
		Attempts:        outcome.Attempts,
		CostUSD:         outcome.CostUSD,
		OptimizedPrompt: outcome.OptimizedPrompt,
	})
}

func (server *Server) failImageRequest(c echo.Context, err error) error {
	var fieldError *request.FieldError

	if errors.As(err, &fieldError) {
		return fail.Fail(c, http.StatusBadRequest, "invalid-request", "%v", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fail.Fail(c, http.StatusGatewayTimeout, "timeout",
			"request did not complete in time: %v", err)
	}

	if errors.Is(err, context.Canceled) {
		return fail.Fail(c, http.StatusRequestTimeout, "canceled",
			"request was canceled before it completed: %v", err)
	}

	if kind, ok := remote.KindOf(err); ok {
		switch kind {
		case remote.ErrorKindRateLimited:
			return fail.Fail(c, http.StatusTooManyRequests, string(kind), "%v", err)
		case remote.ErrorKindPolicyRejected, remote.ErrorKindInvalidInput:
			return fail.Fail(c, http.StatusUnprocessableEntity, string(kind), "%v", err)
		case remote.ErrorKindAuthFailed, remote.ErrorKindTransient:
			return fail.Fail(c, http.StatusBadGateway, string(kind), "%v", err)
		}
	}

	return fail.Fail(c, http.StatusInternalServerError, "internal", "%v", err)
}
