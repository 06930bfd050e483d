package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/strand-ml/strand/internal/tensor"
)

// SafeTensors interop, for exchanging weights with models trained in other
// frameworks. The format is:
//
//	[8 bytes: header size (uint64 LE)]
//	[header size bytes: JSON header]
//	[tensor data: raw bytes]
//
// The JSON header maps tensor names to dtype, shape, and [start, end) byte
// offsets into the data section, plus an optional "__metadata__" entry.

// SafeTensorsDType is a dtype name as it appears in a SafeTensors header.
type SafeTensorsDType string

// Dtype names defined by the SafeTensors spec.
const (
	SafeTensorsF16  SafeTensorsDType = "F16"
	SafeTensorsBF16 SafeTensorsDType = "BF16"
	SafeTensorsF32  SafeTensorsDType = "F32"
	SafeTensorsF64  SafeTensorsDType = "F64"
	SafeTensorsI32  SafeTensorsDType = "I32"
	SafeTensorsI64  SafeTensorsDType = "I64"
	SafeTensorsU8   SafeTensorsDType = "U8"
	SafeTensorsBool SafeTensorsDType = "BOOL"
)

// SafeTensorInfo is one tensor's entry in a SafeTensors header.
type SafeTensorInfo struct {
	DType       SafeTensorsDType `json:"dtype"`
	Shape       []int            `json:"shape"`
	DataOffsets [2]int64         `json:"data_offsets"` // [start, end)
}

// SafeTensorsHeader is the parsed JSON header. Tensor entries and the
// "__metadata__" block share one JSON object, so unmarshaling is custom.
type SafeTensorsHeader struct {
	Metadata map[string]string
	Tensors  map[string]SafeTensorInfo
}

// UnmarshalJSON splits the flat header object into metadata and tensors.
func (h *SafeTensorsHeader) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]SafeTensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info SafeTensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// SafeTensorsReader reads SafeTensors files.
type SafeTensorsReader struct {
	file       *os.File
	header     SafeTensorsHeader
	dataOffset int64
	closed     bool
}

// NewSafeTensorsReader opens a SafeTensors file and parses its header.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: the model path is caller-chosen by design
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		_ = file.Close()
		return nil, ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header SafeTensorsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	return &SafeTensorsReader{
		file:       file,
		header:     header,
		dataOffset: int64(8 + headerSize), //nolint:gosec // G115: bounded by MaxHeaderSize
	}, nil
}

// Close closes the underlying file. Safe to call twice.
func (r *SafeTensorsReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Metadata returns the "__metadata__" block, or nil when absent.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames lists every tensor in the file. Order is unspecified.
func (r *SafeTensorsReader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	return names
}

// TensorInfo returns the header entry for one tensor.
func (r *SafeTensorsReader) TensorInfo(name string) (*SafeTensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %q not found", name)
	}
	return &info, nil
}

// ReadTensorData returns the raw bytes of one tensor.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	start := info.DataOffsets[0]
	size := info.DataOffsets[1] - info.DataOffsets[0]
	if start < 0 || size < 0 {
		return nil, fmt.Errorf("invalid data offsets for tensor %s: [%d, %d]",
			name, info.DataOffsets[0], info.DataOffsets[1])
	}

	if _, err := r.file.Seek(r.dataOffset+start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r.file, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// LoadTensor reads one tensor into a RawTensor on the backend's device.
//
// F16 and BF16 have no native dtype here; loading them returns an error and
// the caller must fetch the bytes with ReadTensorData and widen manually.
func (r *SafeTensorsReader) LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	dtype, err := dataTypeFromSafeTensors(info.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	shape := tensor.Shape(info.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}

	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	raw, err := tensor.NewRaw(shape, dtype, backend.Device())
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}
	if raw.ByteSize() != len(data) {
		return nil, fmt.Errorf("tensor %s: data span %d does not match shape %v of %s (%d bytes)",
			name, len(data), info.Shape, info.DType, raw.ByteSize())
	}
	copy(raw.Data(), data)
	return raw, nil
}

// ReadStateDict loads every tensor in the file. It fails on the first
// tensor with an unsupported dtype; filter with TensorNames/LoadTensor when
// a file mixes precisions.
func (r *SafeTensorsReader) ReadStateDict(backend tensor.Backend) (map[string]*tensor.RawTensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for name := range r.header.Tensors {
		raw, err := r.LoadTensor(name, backend)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", name, err)
		}
		stateDict[name] = raw
	}
	return stateDict, nil
}

// safeTensorsDTypeFor maps a native dtype to its SafeTensors name.
func safeTensorsDTypeFor(dt tensor.DataType) (SafeTensorsDType, bool) {
	switch dt {
	case tensor.Float32:
		return SafeTensorsF32, true
	case tensor.Float64:
		return SafeTensorsF64, true
	case tensor.Int32:
		return SafeTensorsI32, true
	case tensor.Int64:
		return SafeTensorsI64, true
	case tensor.Uint8:
		return SafeTensorsU8, true
	case tensor.Bool:
		return SafeTensorsBool, true
	default:
		return "", false
	}
}

// dataTypeFromSafeTensors maps a SafeTensors dtype to the native one.
func dataTypeFromSafeTensors(dtype SafeTensorsDType) (tensor.DataType, error) {
	switch dtype {
	case SafeTensorsF32:
		return tensor.Float32, nil
	case SafeTensorsF64:
		return tensor.Float64, nil
	case SafeTensorsI32:
		return tensor.Int32, nil
	case SafeTensorsI64:
		return tensor.Int64, nil
	case SafeTensorsU8:
		return tensor.Uint8, nil
	case SafeTensorsBool:
		return tensor.Bool, nil
	case SafeTensorsF16, SafeTensorsBF16:
		return 0, fmt.Errorf("dtype %s requires manual conversion", dtype)
	default:
		return 0, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}
