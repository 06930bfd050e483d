package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Resource limits enforced on untrusted files.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // JSON header
	MaxMetadataSize  = 10 * 1024 * 1024  // user metadata inside the header
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidationLevel controls how much of the header is checked at open time.
type ValidationLevel int

const (
	// ValidationStrict runs every check, including the O(n log n) offset
	// overlap scan. The default.
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names and counts but skips the offset scan.
	ValidationNormal
	// ValidationNone trusts the file completely. Only for input this
	// process wrote itself.
	ValidationNone
)

// ValidateTensorOffsets rejects tables whose entries overlap or reach past
// the data section. A crafted file could otherwise alias one tensor's bytes
// into another or read out of bounds.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateTensorName rejects names that could be abused when callers use
// them to build file paths or keys: traversal sequences, separators, null
// bytes, unbounded length.
func ValidateTensorName(name string) error {
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.Contains(name, "..") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains '..' (path traversal attempt)",
		}
	}
	if strings.ContainsAny(name, `/\`) {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains path separator (/ or \\)",
		}
	}
	if strings.Contains(name, "\x00") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains null byte",
		}
	}
	return nil
}

// ValidateHeader runs the header checks appropriate for the given level.
// dataSize is the logical (uncompressed) size of the data section.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}

	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	var metadataBytes int
	for k, v := range h.Metadata {
		metadataBytes += len(k) + len(v)
	}
	if metadataBytes > MaxMetadataSize {
		return &ValidationError{
			Type:    "metadata_too_large",
			Details: fmt.Sprintf("got %d bytes, max %d", metadataBytes, MaxMetadataSize),
		}
	}

	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
	}

	if level == ValidationStrict {
		if err := ValidateTensorOffsets(h.Tensors, dataSize); err != nil {
			return err
		}
	}
	return nil
}
