package nn

import (
	"fmt"
	"time"

	"github.com/strand-ml/strand/internal/serialization"
	"github.com/strand-ml/strand/internal/tensor"
)

// Save writes a module's weights to a .strand file.
//
// modelType is recorded in the file header for provenance (for example
// "TransformerUnit"); metadata is an optional free-form map. The file
// holds weights only; use Checkpoint to persist training state too.
func Save(m StateDictModule, path, modelType string, metadata map[string]string) error {
	writer, err := serialization.NewStrandWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}
	defer writer.Close()

	if err := writer.WriteStateDict(m.StateDict(), modelType, metadata); err != nil {
		return fmt.Errorf("failed to write state dict: %w", err)
	}
	return writer.Close()
}

// Load restores a module's weights from a .strand file.
//
// The module must be pre-constructed with the same architecture that was
// saved; Load copies data into the existing parameter tensors and rejects
// files whose names or shapes do not match.
func Load(m StateDictModule, path string, backend tensor.Backend) error {
	reader, err := serialization.NewStrandReader(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	stateDict, err := reader.ReadStateDict(backend)
	if err != nil {
		return fmt.Errorf("failed to read state dict: %w", err)
	}
	return m.LoadStateDict(stateDict)
}

// OptimizerState is the slice of an optimizer a checkpoint needs. The
// optim package implements it; declaring it here avoids an import cycle.
type OptimizerState interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
	GetLR() float32
}

// Checkpoint is a complete training snapshot: model weights, optimizer
// state (momentum buffers, Adam moments), and progress counters. Saving
// one lets an interrupted run resume exactly where it stopped.
//
// Optimizer tensors are stored in the same file as the weights under an
// "optimizer." key prefix, so a checkpoint file is also loadable as plain
// weights by callers that ignore that prefix.
type Checkpoint struct {
	Model     StateDictModule
	Optimizer OptimizerState
	Epoch     int
	Step      int64
	Loss      float64
	Metadata  map[string]any
	CreatedAt time.Time
}

// Save writes the checkpoint to a .strand file.
func (c *Checkpoint) Save(path string) error {
	combined := make(map[string]*tensor.RawTensor)
	for name, raw := range c.Model.StateDict() {
		combined[name] = raw
	}
	for name, raw := range c.Optimizer.StateDict() {
		combined["optimizer."+name] = raw
	}

	header := serialization.Header{
		ModelType: "Checkpoint",
		CheckpointMeta: &serialization.CheckpointMeta{
			IsCheckpoint:    true,
			Epoch:           c.Epoch,
			Step:            c.Step,
			Loss:            c.Loss,
			OptimizerConfig: map[string]any{"lr": c.Optimizer.GetLR()},
			TrainingMeta:    c.Metadata,
		},
	}

	writer, err := serialization.NewStrandWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}
	defer writer.Close()

	if err := writer.WriteStateDictWithHeader(combined, header); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return writer.Close()
}

// LoadCheckpoint restores a training snapshot from a .strand file.
//
// model and optimizer must be pre-constructed with the same architecture
// and hyperparameter shapes as when the checkpoint was saved; their
// tensors are overwritten in place. Returns the checkpoint with the
// recorded progress counters so callers can resume at Epoch+1.
func LoadCheckpoint(path string, backend tensor.Backend, model StateDictModule, optimizer OptimizerState) (*Checkpoint, error) {
	reader, err := serialization.NewStrandReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	header := reader.Header()
	if header.CheckpointMeta == nil || !header.CheckpointMeta.IsCheckpoint {
		return nil, fmt.Errorf("%s is not a checkpoint file", path)
	}

	stateDict, err := reader.ReadStateDict(backend)
	if err != nil {
		return nil, fmt.Errorf("failed to read state dict: %w", err)
	}

	const prefix = "optimizer."
	modelState := make(map[string]*tensor.RawTensor)
	optimizerState := make(map[string]*tensor.RawTensor)
	for name, raw := range stateDict {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			optimizerState[name[len(prefix):]] = raw
		} else {
			modelState[name] = raw
		}
	}

	if err := model.LoadStateDict(modelState); err != nil {
		return nil, fmt.Errorf("failed to load model state: %w", err)
	}
	if err := optimizer.LoadStateDict(optimizerState); err != nil {
		return nil, fmt.Errorf("failed to load optimizer state: %w", err)
	}

	return &Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     header.CheckpointMeta.Epoch,
		Step:      header.CheckpointMeta.Step,
		Loss:      header.CheckpointMeta.Loss,
		Metadata:  header.CheckpointMeta.TrainingMeta,
		CreatedAt: header.CreatedAt,
	}, nil
}

// SaveCheckpoint saves a snapshot with just the progress fields most
// loops track. For step counts, losses or custom metadata build a
// Checkpoint value directly.
func SaveCheckpoint(path string, model StateDictModule, optimizer OptimizerState, epoch int) error {
	c := &Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     epoch,
	}
	return c.Save(path)
}
