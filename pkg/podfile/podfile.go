// Package podfile reads and writes files holding raw pod streams.
package podfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ssargent/podkit/pkg/pod"
	"golang.org/x/sys/unix"
)

// File is a read-only view of a pod file. Data aliases the mapping when
// the file is mmapped and must not be used after Close.
type File struct {
	Data    []byte
	opts    []pod.Option
	mmapped bool
}

// Open maps path read-only. If mmap is unavailable it falls back to
// ReadAt-based loading. The returned file must be closed to release any
// mapping.
func Open(path string, opts ...pod.Option) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%s: file too large to map (%d bytes)", path, size64)
	}
	size := int(size64)
	if size == 0 {
		return &File{Data: []byte{}, opts: opts}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return &File{Data: data, opts: opts, mmapped: true}, nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return &File{Data: data, opts: opts}, nil
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

// Mapped reports whether Data is backed by an mmap.
func (f *File) Mapped() bool { return f.mmapped }

// Reader returns a pod reader over the whole file.
func (f *File) Reader() *pod.Reader {
	return pod.NewReader(f.Data, f.opts...)
}

// Validate checks every pod in the file.
func (f *File) Validate() error {
	return pod.Validate(f.Data, f.opts...)
}

// Close releases the mapping, if any.
func (f *File) Close() error {
	var err error
	if f.mmapped && f.Data != nil {
		err = unix.Munmap(f.Data)
	}
	f.Data = nil
	f.mmapped = false
	return err
}

// WriteFile writes data to path atomically: it is written to a temporary
// file in the same directory and renamed into place.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
