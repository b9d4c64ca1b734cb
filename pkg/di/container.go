// Package di provides dependency injection container
package di

import (
	"github.com/ssargent/podkit/pkg/api"
	"github.com/ssargent/podkit/pkg/pod"
	"github.com/ssargent/podkit/pkg/storage"
)

// StorageOpener opens the pod storage used by the CLI and the server
type StorageOpener func(cfg storage.Config, opts ...pod.Option) (*storage.PodStorage, error)

// Container holds all the dependencies for the application
type Container struct {
	serverFactory api.ServerFactory
	storageOpener StorageOpener
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		serverFactory: api.NewServerFactory(),
		storageOpener: storage.NewPodStorage,
	}
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// GetStorageOpener returns the storage opener
func (c *Container) GetStorageOpener() StorageOpener {
	return c.storageOpener
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

// SetStorageOpener allows overriding the storage opener (for testing)
func (c *Container) SetStorageOpener(opener StorageOpener) {
	c.storageOpener = opener
}
