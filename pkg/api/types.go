package api

import (
	"github.com/segmentio/ksuid"
	"github.com/ssargent/podkit/pkg/storage"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PodInfo describes a stored pod
type PodInfo struct {
	ID      string `json:"id"`
	Size    int    `json:"size"`
	Digest  string `json:"digest"`
	Created bool   `json:"created,omitempty"`
}

// StatsResponse reports storage totals
type StatsResponse struct {
	Pods  int   `json:"pods"`
	Bytes int64 `json:"bytes"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind        string
	Port        int
	APIKey      string
	MaxBodySize int64 // Largest accepted request body, 0 = DefaultMaxBodySize
}

// DefaultMaxBodySize bounds uploaded pods and documents.
const DefaultMaxBodySize = 16 << 20

// PodStorage defines the pod storage operations the API needs
type PodStorage interface {
	Put(data []byte) (ksuid.KSUID, bool, error)
	Get(id ksuid.KSUID) ([]byte, error)
	Delete(id ksuid.KSUID) error
	List(limit int) ([]storage.Entry, error)
	Stats() (storage.Stats, error)
}
