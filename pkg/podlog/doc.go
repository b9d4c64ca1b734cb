// Package podlog stores pods in an append-only file.
//
// Every pod is framed as
//
//	[CRC32(4)][Size(4)][Timestamp(8)][Payload(Size)]
//
// with little-endian frame fields. The CRC covers the size, the timestamp
// and the payload. The top two bits of Size carry the Compression tag; a
// compressed payload is the pod length (u32) followed by an LZ4 block or a
// zstd frame, and pods that do not shrink are stored raw.
//
// Pods are validated before they are appended, so a log only ever holds
// well-formed pods; a torn tail left by a crash is reported as
// ErrCorruption and Scan finds the intact prefix.
package podlog
