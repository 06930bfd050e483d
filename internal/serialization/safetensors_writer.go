package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/strand-ml/strand/internal/tensor"
)

// SafeTensorsWriter writes state dictionaries in SafeTensors format.
type SafeTensorsWriter struct {
	file   *os.File
	closed bool
}

// safeTensorEntry is one tensor's header entry as serialized to JSON.
type safeTensorEntry struct {
	DType       SafeTensorsDType `json:"dtype"`
	Shape       []int64          `json:"shape"`
	DataOffsets [2]int64         `json:"data_offsets"`
}

// NewSafeTensorsWriter creates a SafeTensors file writer.
func NewSafeTensorsWriter(path string) (*SafeTensorsWriter, error) {
	//nolint:gosec // G304: the destination path is caller-chosen by design
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &SafeTensorsWriter{file: file}, nil
}

// WriteSafeTensors writes a state dictionary to path in one call.
func WriteSafeTensors(path string, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	writer, err := NewSafeTensorsWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = writer.Close()
	}()
	return writer.WriteStateDict(stateDict, metadata)
}

// WriteStateDict writes the tensors and optional metadata. Tensors are laid
// out alphabetically by name, which the SafeTensors spec requires.
func (w *SafeTensorsWriter) WriteStateDict(stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	var offset int64
	for _, name := range names {
		raw := stateDict[name]
		dtype, ok := safeTensorsDTypeFor(raw.DType())
		if !ok {
			return fmt.Errorf("tensor %s: dtype %s has no SafeTensors equivalent", name, raw.DType())
		}

		shape := raw.Shape()
		shapeInt64 := make([]int64, len(shape))
		for i, dim := range shape {
			shapeInt64[i] = int64(dim)
		}

		size := int64(raw.ByteSize())
		header[name] = safeTensorEntry{
			DType:       dtype,
			Shape:       shapeInt64,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if err := binary.Write(w.file, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, name := range names {
		if _, err := w.file.Write(stateDict[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the underlying file. Safe to call twice.
func (w *SafeTensorsWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
