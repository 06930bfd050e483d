// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package checkpoint provides model and training-state persistence.
//
// This package wraps the internal serialization layer and exports a clean
// public API for saving and loading module weights, full training
// checkpoints (model plus optimizer state), and SafeTensors interchange
// files.
//
// Example usage:
//
//	import (
//	    "github.com/strand-ml/strand/checkpoint"
//	    "github.com/strand-ml/strand/backend/cpu"
//	)
//
//	// Save weights
//	err := checkpoint.Save(model, "model.strand", "TransformerUnit", nil)
//
//	// Load them back into an identically shaped model
//	backend := cpu.New()
//	err = checkpoint.Load(model, "model.strand", backend)
//
//	// Persist a full training state and resume later
//	err = checkpoint.SaveCheckpoint("ckpt.strand", model, optimizer, epoch)
//	ckpt, err := checkpoint.LoadCheckpoint("ckpt.strand", backend, model, optimizer)
package checkpoint

import (
	"github.com/strand-ml/strand/internal/nn"
	"github.com/strand-ml/strand/internal/serialization"
	"github.com/strand-ml/strand/tensor"
)

// Module persistence

// Save writes a module's weights to a .strand file.
//
// modelType is recorded in the file header for provenance (for example
// "TransformerUnit"); metadata is an optional free-form map. The file
// holds weights only; use Checkpoint to persist training state too.
func Save(m nn.StateDictModule, path, modelType string, metadata map[string]string) error {
	return nn.Save(m, path, modelType, metadata)
}

// Load restores a module's weights from a .strand file. The module must
// already be constructed with matching architecture: names, shapes and
// dtypes of its parameters are validated against the file.
func Load(m nn.StateDictModule, path string, backend tensor.Backend) error {
	return nn.Load(m, path, backend)
}

// Training checkpoints

// OptimizerState is the optimizer surface needed for checkpointing.
// Both optim.SGD and optim.Adam satisfy it.
type OptimizerState = nn.OptimizerState

// Checkpoint bundles a model with its optimizer state and training
// progress so a run can resume exactly where it stopped.
type Checkpoint = nn.Checkpoint

// SaveCheckpoint persists model and optimizer state in one file.
func SaveCheckpoint(path string, model nn.StateDictModule, optimizer OptimizerState, epoch int) error {
	return nn.SaveCheckpoint(path, model, optimizer, epoch)
}

// LoadCheckpoint restores a checkpoint written by Checkpoint.Save or
// SaveCheckpoint. The model and optimizer must be pre-built with the
// same architecture and optimizer type; their state is loaded in place.
// The returned Checkpoint carries the recorded epoch, step, loss and
// metadata.
func LoadCheckpoint(path string, backend tensor.Backend, model nn.StateDictModule, optimizer OptimizerState) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, backend, model, optimizer)
}

// Low-level container access

// Header is the JSON document embedded in every .strand file: the tensor
// table plus provenance and optional training state.
type Header = serialization.Header

// CheckpointMeta records training state inside a Header.
type CheckpointMeta = serialization.CheckpointMeta

// TensorMeta locates one tensor inside the data section.
type TensorMeta = serialization.TensorMeta

// Writer writes .strand files.
type Writer = serialization.StrandWriter

// WriterOptions controls Writer behavior.
type WriterOptions = serialization.WriterOptions

// NewWriter creates a writer for the given path.
func NewWriter(path string) (*Writer, error) {
	return serialization.NewStrandWriter(path)
}

// NewWriterWithOptions creates a writer with explicit options, e.g.
// gzip compression of the data section.
func NewWriterWithOptions(path string, opts WriterOptions) (*Writer, error) {
	return serialization.NewStrandWriterWithOptions(path, opts)
}

// Reader reads .strand files, validating the header and checksum.
type Reader = serialization.StrandReader

// ReaderOptions controls Reader validation behavior.
type ReaderOptions = serialization.ReaderOptions

// ValidationLevel selects how much of the header is validated at open.
type ValidationLevel = serialization.ValidationLevel

// Validation levels.
const (
	ValidationStrict ValidationLevel = serialization.ValidationStrict
	ValidationNormal ValidationLevel = serialization.ValidationNormal
	ValidationNone   ValidationLevel = serialization.ValidationNone
)

// NewReader opens a .strand file with strict validation.
func NewReader(path string) (*Reader, error) {
	return serialization.NewStrandReader(path)
}

// NewReaderWithOptions opens a .strand file with explicit options.
func NewReaderWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	return serialization.NewStrandReaderWithOptions(path, opts)
}

// MmapReader reads uncompressed .strand files via memory mapping,
// returning zero-copy views of tensor data. Checksum verification is
// deferred to VerifyChecksum.
type MmapReader = serialization.MmapReader

// NewMmapReader memory-maps a .strand file.
func NewMmapReader(path string) (*MmapReader, error) {
	return serialization.NewMmapReader(path)
}

// SafeTensors interchange

// WriteSafeTensors writes a state dict in the SafeTensors format for
// exchange with models trained in other frameworks.
func WriteSafeTensors(path string, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	return serialization.WriteSafeTensors(path, stateDict, metadata)
}

// SafeTensorsReader reads SafeTensors files.
type SafeTensorsReader = serialization.SafeTensorsReader

// NewSafeTensorsReader opens a SafeTensors file and parses its header.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	return serialization.NewSafeTensorsReader(path)
}

// Sentinel errors, matched with errors.Is.
var (
	ErrChecksumMismatch   = serialization.ErrChecksumMismatch
	ErrInvalidMagic       = serialization.ErrInvalidMagic
	ErrUnsupportedVersion = serialization.ErrUnsupportedVersion
	ErrCompressedMmap     = serialization.ErrCompressedMmap
)
