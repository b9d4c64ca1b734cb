package api

import (
	"context"
	"log/slog"

	"github.com/ssargent/podkit/pkg/pod"
)

// DefaultServerFactory is the default implementation of ServerFactory
type DefaultServerFactory struct{}

// NewServerFactory creates a new server factory
func NewServerFactory() ServerFactory {
	return &DefaultServerFactory{}
}

// CreateServerStarter creates a server starter
func (f *DefaultServerFactory) CreateServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// DefaultServerStarter is the default implementation of ServerStarter
type DefaultServerStarter struct{}

// StartServer starts the API server with the given configuration
func (s *DefaultServerStarter) StartServer(
	ctx context.Context,
	storage PodStorage,
	config ServerConfig,
	logger *slog.Logger,
	opts ...pod.Option,
) error {
	return StartServer(ctx, storage, config, logger, opts...)
}
