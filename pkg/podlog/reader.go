package podlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader provides sequential and random access to records in a log file
type Reader struct {
	file   *os.File
	reader *bufio.Reader
	offset int64
	config ReaderConfig
}

// NewReader creates a new log reader for the specified file
func NewReader(config ReaderConfig) (*Reader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	if config.StartOffset > 0 {
		if _, err := file.Seek(config.StartOffset, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}

	return &Reader{
		file:   file,
		reader: bufio.NewReader(file),
		offset: config.StartOffset,
		config: config,
	}, nil
}

// ReadNext reads the record at the current offset. It returns io.EOF at a
// clean end of file and ErrCorruption for a torn or damaged record.
func (r *Reader) ReadNext() (*Record, error) {
	var hdr [RecordHeaderSize]byte
	n, err := io.ReadFull(r.reader, hdr[:])
	if err == io.EOF {
		return nil, io.EOF
	}
	if err == io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("%w: torn record header at offset %d (%d bytes)", ErrCorruption, r.offset, n)
	}
	if err != nil {
		return nil, err
	}

	record, err := decodeHeader(hdr[:], r.offset)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, record.StoredSize())
	if _, err := io.ReadFull(r.reader, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: torn record at offset %d", ErrCorruption, r.offset)
		}
		return nil, err
	}
	if err := record.load(payload); err != nil {
		return nil, err
	}

	r.offset += int64(record.Len())
	return record, nil
}

// ReadAt reads the record starting at offset without moving the cursor.
func (r *Reader) ReadAt(offset int64) (*Record, error) {
	var hdr [RecordHeaderSize]byte
	if _, err := r.file.ReadAt(hdr[:], offset); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: no record at offset %d", ErrCorruption, offset)
		}
		return nil, err
	}

	record, err := decodeHeader(hdr[:], offset)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, record.StoredSize())
	if _, err := r.file.ReadAt(payload, offset+RecordHeaderSize); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: torn record at offset %d", ErrCorruption, offset)
		}
		return nil, err
	}
	if err := record.load(payload); err != nil {
		return nil, err
	}

	return record, nil
}

// Seek sets the read offset
func (r *Reader) Seek(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	r.reader.Reset(r.file)
	r.offset = offset
	return nil
}

// Offset returns the current read offset
func (r *Reader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator for records
func (r *Reader) Iterator() RecordIterator {
	return &recordIterator{reader: r}
}

// Close closes the log reader
func (r *Reader) Close() error {
	return r.file.Close()
}

type recordIterator struct {
	reader *Reader
	record *Record
	err    error
}

func (it *recordIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.record, it.err = it.reader.ReadNext()
	return it.err == nil
}

func (it *recordIterator) Record() *Record {
	return it.record
}

// Err returns the error that stopped the iteration, or nil at a clean end.
func (it *recordIterator) Err() error {
	if errors.Is(it.err, io.EOF) {
		return nil
	}
	return it.err
}

// Close leaves the underlying reader open; it is owned by the caller.
func (it *recordIterator) Close() error {
	return nil
}

// ScanResult reports how much of a log is intact.
type ScanResult struct {
	Records   int
	ValidSize int64 // Length of the intact prefix
	Err       error // First corruption found, nil if the whole file is intact
}

// Scan reads the log from the start and stops at the first damaged
// record. Crash recovery can truncate the file to ValidSize.
func Scan(path string) (ScanResult, error) {
	r, err := NewReader(ReaderConfig{FilePath: path})
	if err != nil {
		return ScanResult{}, err
	}
	defer r.Close()

	var res ScanResult
	it := r.Iterator()
	for it.Next() {
		res.Records++
		res.ValidSize = r.Offset()
	}
	if err := it.Err(); err != nil {
		if !errors.Is(err, ErrCorruption) {
			return res, err
		}
		res.Err = err
	}
	return res, nil
}
