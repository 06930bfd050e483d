package serialization

import (
	"time"

	"github.com/strand-ml/strand/internal/tensor"
)

// Layout constants for the .strand container.
const (
	MagicBytes        = "STRD"
	FormatVersion     = 1    // legacy layout: 20-byte prefix, no checksum
	FormatVersionV2   = 2    // current layout: 64-byte fixed header with SHA-256
	HeaderAlignment   = 64   // tensor data starts on a 64-byte boundary
	FixedHeaderSizeV2 = 64   // size of the v2 fixed header (0x40 bytes)
	ChecksumSize      = 32   // SHA-256 digest length
	ChecksumOffsetV2  = 0x20 // digest position inside the v2 fixed header
)

// On-disk dtype names. These are frozen: files written today must stay
// readable even if tensor.DataType.String ever changes.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
	DTypeInt32   = "int32"
	DTypeInt64   = "int64"
	DTypeUint8   = "uint8"
	DTypeBool    = "bool"
)

// Flag bits stored in the fixed header.
const (
	FlagCompressed   uint32 = 1 << 0 // data section is gzip-compressed (v2 only)
	FlagHasOptimizer uint32 = 1 << 1 // checkpoint with optimizer state
	FlagHasMetadata  uint32 = 1 << 2 // user metadata present
)

// Header is the JSON document embedded after the fixed header. It carries
// everything a reader needs to reconstruct the state dictionary: the tensor
// table plus provenance and optional training state.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	StrandVersion  string            `json:"strand_version"` // library version that wrote the file
	ModelType      string            `json:"model_type"`     // e.g. "TransformerUnit", "Sequential"
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta records training state so a run can resume where it left
// off. Present only in checkpoint files, not in plain weight exports.
type CheckpointMeta struct {
	IsCheckpoint    bool           `json:"is_checkpoint"`
	Epoch           int            `json:"epoch"`
	Step            int64          `json:"step"`
	Loss            float64        `json:"loss"`
	OptimizerType   string         `json:"optimizer_type"`   // "SGD", "Adam"
	OptimizerConfig map[string]any `json:"optimizer_config"` // hyperparameters at save time
	TrainingMeta    map[string]any `json:"training_meta"`
}

// TensorMeta locates one tensor inside the data section. Offset and Size are
// relative to the start of the (uncompressed) data section, not the file.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// dtypeToString maps a runtime dtype to its frozen on-disk name.
func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	case tensor.Int32:
		return DTypeInt32
	case tensor.Int64:
		return DTypeInt64
	case tensor.Uint8:
		return DTypeUint8
	case tensor.Bool:
		return DTypeBool
	default:
		return "unknown"
	}
}

// stringToDtype is the inverse of dtypeToString. The bool result is false
// for names this build does not know.
func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	case DTypeInt32:
		return tensor.Int32, true
	case DTypeInt64:
		return tensor.Int64, true
	case DTypeUint8:
		return tensor.Uint8, true
	case DTypeBool:
		return tensor.Bool, true
	default:
		return 0, false
	}
}
