package podlog

import (
	"time"

	"github.com/ssargent/podkit/pkg/pod"
)

// WriterConfig holds configuration for the log writer
type WriterConfig struct {
	FilePath      string        // Path to the log file
	FsyncInterval time.Duration // How often to fsync (0 = every write)
	BufferSize    int           // Write buffer size
	PodOptions    []pod.Option  // Format used to validate appended pods
	Compression   Compression   // How pods are stored
}

// ReaderConfig holds configuration for the log reader
type ReaderConfig struct {
	FilePath    string // Path to the log file
	StartOffset int64  // Offset to start reading from
}

// RecordIterator provides streaming access to records
type RecordIterator interface {
	Next() bool
	Record() *Record
	Err() error
	Close() error
}

// Errors
var (
	ErrCorruption     = &LogError{"data corruption detected"}
	ErrRecordTooLarge = &LogError{"record too large"}
	ErrInvalidPod     = &LogError{"invalid pod"}
)

// LogError represents a pod log error
type LogError struct {
	Message string
}

func (e *LogError) Error() string {
	return e.Message
}
