package nn

import (
	"math"
	"testing"

	"github.com/strand-ml/strand/internal/autodiff"
	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

// TestMSELoss_Value tests the loss against a hand-computed mean of squared
// differences.
func TestMSELoss_Value(t *testing.T) {
	backend := autodiff.New(cpu.New())
	mse := NewMSELoss(backend)

	predictions, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	targets, _ := tensor.FromSlice([]float32{1, 1, 1, 5}, tensor.Shape{2, 2}, backend)

	loss := mse.Forward(predictions, targets)

	// diff = [0, 1, 2, -1], squared = [0, 1, 4, 1], mean = 6/4.
	if got := loss.Item(); got != 1.5 {
		t.Errorf("loss = %f, want 1.5", got)
	}
}

// TestMSELoss_PerfectPrediction tests that identical inputs give zero loss.
func TestMSELoss_PerfectPrediction(t *testing.T) {
	backend := autodiff.New(cpu.New())
	mse := NewMSELoss(backend)

	predictions := tensor.Randn[float32](tensor.Shape{3, 4}, backend)
	targets := predictions.Clone()

	loss := mse.Forward(predictions, targets)
	if got := loss.Item(); got != 0 {
		t.Errorf("loss = %f, want 0", got)
	}
}

// TestMSELoss_Gradients tests that the loss is recorded on the tape:
// d(mean((p-t)²))/dp = 2(p-t)/N flows back to the predictions.
func TestMSELoss_Gradients(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	defer backend.Tape().StopRecording()

	mse := NewMSELoss(backend)

	predictions, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4}, backend)
	targets, _ := tensor.FromSlice([]float32{0, 0, 0, 0}, tensor.Shape{4}, backend)

	loss := mse.Forward(predictions, targets)
	gradients := autodiff.Backward(loss, backend)

	grad := gradients[predictions.Raw()]
	if grad == nil {
		t.Fatal("expected a gradient for the predictions")
	}

	// 2*(p-t)/4 = p/2.
	expected := []float32{0.5, 1.0, 1.5, 2.0}
	for i, want := range expected {
		if got := grad.AsFloat32()[i]; math.Abs(float64(got-want)) > 1e-6 {
			t.Errorf("grad[%d] = %f, want %f", i, got, want)
		}
	}
}

// TestMSELoss_ShapeMismatch tests the shape validation panic.
func TestMSELoss_ShapeMismatch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	mse := NewMSELoss(backend)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for mismatched shapes")
		}
	}()

	predictions := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
	targets := tensor.Ones[float32](tensor.Shape{3, 2}, backend)
	mse.Forward(predictions, targets)
}

// TestMSELoss_NoParameters tests that the loss contributes no trainable
// state.
func TestMSELoss_NoParameters(t *testing.T) {
	backend := autodiff.New(cpu.New())
	mse := NewMSELoss(backend)

	if params := mse.Parameters(); len(params) != 0 {
		t.Errorf("Parameters() length = %d, want 0", len(params))
	}
}
