package serialization

import (
	"crypto/sha256"
	"io"
)

// ComputeChecksum returns the SHA-256 digest of data.
//
// In v2 files the digest covers the data section exactly as stored on disk,
// so a compressed file is checksummed over the compressed bytes. Integrity
// can therefore be verified without decompressing.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ComputeChecksumReader streams r through SHA-256 without buffering it,
// for files too large to hold in memory.
func ComputeChecksumReader(r io.Reader) ([32]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return [32]byte{}, err
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ValidateChecksum returns ErrChecksumMismatch when computed differs from
// stored.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}
