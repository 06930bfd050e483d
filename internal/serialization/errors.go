package serialization

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is; the wrapping layers
// add file and tensor context.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrOffsetOverlap      = errors.New("tensor offsets overlap")
	ErrOutOfBounds        = errors.New("tensor extends beyond data section")
	ErrNegativeOffset     = errors.New("negative offset or size")
	ErrTooManyTensors     = errors.New("too many tensors in file")
	ErrTensorNameTooLong  = errors.New("tensor name too long")
	ErrInvalidTensorName  = errors.New("invalid tensor name")
	ErrCompressedMmap     = errors.New("compressed files cannot be memory-mapped")
)

// ValidationError reports which tensor (or pair of tensors) failed a header
// check and why. It is returned by the validation routines so callers can
// log the offending entry instead of a bare sentinel.
type ValidationError struct {
	Type    string // kind of failure, e.g. "offset_overlap", "out_of_bounds"
	Tensor  string // primary tensor name
	Tensor2 string // second tensor for overlap failures
	Details string
}

func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%s: tensors %q and %q: %s", e.Type, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}
