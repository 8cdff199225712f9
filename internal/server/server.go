package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/brpaz/echozap"
	"github.com/labstack/echo/v4"
	"github.com/pictor-io/pictor/internal/opentelemetry"
	"github.com/pictor-io/pictor/internal/orchestrator"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type Server struct {
	listener   net.Listener
	httpServer *http.Server
	echo       *echo.Echo

	orchestrator   *orchestrator.Orchestrator
	requestTimeout time.Duration
	logger         *zap.SugaredLogger

	// Metrics
	requestsCounter metric.Int64Counter
	imagesCounter   metric.Int64Counter
}

func New(addr string, orchestrator *orchestrator.Orchestrator, opts ...Option) (*Server, error) {
	server := &Server{
		orchestrator: orchestrator,
	}

	// Listen on the desired port
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	server.listener = listener

	// Apply options
	for _, opt := range opts {
		opt(server)
	}

	// Apply defaults
	if server.logger == nil {
		server.logger = zap.NewNop().Sugar()
	}

	if server.requestTimeout == 0 {
		server.requestTimeout = 5 * time.Minute
	}

	// Configure the router
	server.echo = echo.New()
	server.echo.HideBanner = true
	server.echo.HidePort = true
	server.echo.Use(echozap.ZapLogger(server.logger.Desugar()))

	v1 := server.echo.Group("/v1")
	v1.POST("/generate", server.handleGenerate)
	v1.POST("/edit", server.handleEdit)
	v1.POST("/blend", server.handleBlend)
	v1.GET("/status", server.handleStatus)
	v1.POST("/reset", server.handleReset)

	server.echo.GET("/health", server.handleHealth)

	// Configure HTTP server
	server.httpServer = &http.Server{
		Handler:           server.echo,
		ReadHeaderTimeout: 30 * time.Second,
	}

	// Metrics
	server.requestsCounter, err = opentelemetry.DefaultMeter.Int64Counter("io.pictor.requests.total")
	if err != nil {
		return nil, err
	}

	server.imagesCounter, err = opentelemetry.DefaultMeter.Int64Counter("io.pictor.images.total")
	if err != nil {
		return nil, err
	}

	return server, nil
}

func (server *Server) Addr() string {
	return strings.ReplaceAll(server.listener.Addr().String(), "[::]", "127.0.0.1")
}

func (server *Server) Run(ctx context.Context) error {
	server.logger.Infof("listening on %s", server.Addr())

	go func() {
		<-ctx.Done()

		_ = server.httpServer.Close()
	}()

	return server.httpServer.Serve(server.listener)
}
