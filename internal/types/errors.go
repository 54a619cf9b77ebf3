package types

import "errors"

// Error kinds surfaced by the codecs and the orchestrator. Failures are wrapped
// around one of these so callers can test the kind with errors.Is.
var (
	// ErrIO wraps open, seek, read, write and flush failures of the backing storage.
	ErrIO = errors.New("i/o error")

	// ErrInvalidSignature reports a protective MBR or GPT header magic mismatch.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrChecksumMismatch reports a header or partition entry array CRC32 mismatch.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrPartitionTableCorrupt reports structurally invalid sizes, counts or LBA ranges.
	ErrPartitionTableCorrupt = errors.New("partition table corrupt")

	// ErrNotWritable is returned when persisting a disk that was opened read-only.
	ErrNotWritable = errors.New("disk not opened in writable mode")

	// ErrNotInitialized is returned when persisting a disk with no header or partition state.
	ErrNotInitialized = errors.New("disk not initialized")

	// ErrSessionClosed is returned by a disk session after Close or a successful Write.
	ErrSessionClosed = errors.New("disk session is closed or already written")
)
