package server

import (
	"time"

	"go.uber.org/zap"
)

type Option func(server *Server)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(server *Server) {
		server.logger = logger
	}
}

// WithRequestTimeout bounds how long a single image request may take,
// queueing and retries included.
func WithRequestTimeout(requestTimeout time.Duration) Option {
	return func(server *Server) {
		server.requestTimeout = requestTimeout
	}
}
