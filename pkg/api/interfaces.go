package api

import (
	"context"
	"log/slog"

	"github.com/ssargent/podkit/pkg/pod"
)

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves storage until ctx is cancelled
	StartServer(ctx context.Context, storage PodStorage, config ServerConfig, logger *slog.Logger, opts ...pod.Option) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
