package podlog

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

const (
	// RecordHeaderSize is the length of the frame in front of every pod.
	RecordHeaderSize = 16
	// MaxPodSize bounds a single framed pod.
	MaxPodSize = sizeMask
)

// Record is one framed pod.
// Format: [CRC32(4)][Size(4)][Timestamp(8)][Payload]
type Record struct {
	CRC32     uint32 // CRC32 over everything after the CRC field
	Size      uint32 // Payload length, compression tag in the top two bits
	Timestamp uint64 // Unix timestamp in nanoseconds
	Pod       []byte // The pod, decompressed
	Offset    int64  // Position of the record in the file

	payload []byte
}

// NewRecord creates a new record with current timestamp
func NewRecord(data []byte, c Compression) (*Record, error) {
	if len(data) > MaxPodSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(data))
	}
	payload, used, err := compressPayload(c, data)
	if err != nil {
		return nil, err
	}
	r := &Record{
		Size:      uint32(len(payload)) | uint32(used)<<compressionShift,
		Timestamp: uint64(time.Now().UnixNano()),
		Pod:       data,
		payload:   payload,
	}
	r.CRC32 = r.checksum()
	return r, nil
}

// Time returns the record timestamp.
func (r *Record) Time() time.Time {
	return time.Unix(0, int64(r.Timestamp))
}

// Compression returns how the pod is stored.
func (r *Record) Compression() Compression {
	return Compression(r.Size >> compressionShift)
}

// StoredSize returns the payload length on disk.
func (r *Record) StoredSize() int {
	return int(r.Size & sizeMask)
}

// Len returns the total size of the record when encoded
func (r *Record) Len() int {
	return RecordHeaderSize + r.StoredSize()
}

// Encode serializes the record.
func (r *Record) Encode() []byte {
	buf := make([]byte, r.Len())
	binary.LittleEndian.PutUint32(buf[0:], r.CRC32)
	binary.LittleEndian.PutUint32(buf[4:], r.Size)
	binary.LittleEndian.PutUint64(buf[8:], r.Timestamp)
	copy(buf[RecordHeaderSize:], r.payload)
	return buf
}

// Validate checks the integrity of a record using CRC32
func (r *Record) Validate() error {
	if sum := r.checksum(); r.CRC32 != sum {
		return fmt.Errorf("%w: CRC32 mismatch at offset %d: %d != %d", ErrCorruption, r.Offset, r.CRC32, sum)
	}
	return nil
}

func (r *Record) checksum() uint32 {
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:], r.Size)
	binary.LittleEndian.PutUint64(hdr[4:], r.Timestamp)

	crc := crc32.NewIEEE()
	crc.Write(hdr[:])
	crc.Write(r.payload)
	return crc.Sum32()
}

// decodeHeader fills the fixed part of a record from hdr.
func decodeHeader(hdr []byte, offset int64) (*Record, error) {
	r := &Record{
		CRC32:     binary.LittleEndian.Uint32(hdr[0:4]),
		Size:      binary.LittleEndian.Uint32(hdr[4:8]),
		Timestamp: binary.LittleEndian.Uint64(hdr[8:16]),
		Offset:    offset,
	}
	if c := r.Compression(); c > CompressionZstd {
		return nil, fmt.Errorf("%w: record at offset %d uses %s", ErrCorruption, offset, c)
	}
	return r, nil
}

// load sets the stored payload, checks it and decompresses the pod.
func (r *Record) load(payload []byte) error {
	r.payload = payload
	if err := r.Validate(); err != nil {
		return err
	}
	pod, err := decompressPayload(r.Compression(), payload)
	if err != nil {
		return fmt.Errorf("%w: record at offset %d: %w", ErrCorruption, r.Offset, err)
	}
	r.Pod = pod
	return nil
}
