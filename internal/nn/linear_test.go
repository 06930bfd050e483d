package nn

import (
	"math"
	"testing"

	"github.com/strand-ml/strand/internal/autodiff"
	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

// TestLinear_Creation tests layer initialization.
func TestLinear_Creation(t *testing.T) {
	backend := autodiff.New(cpu.New())

	layer := NewLinear(10, 5, true, backend)

	if layer.InFeatures() != 10 {
		t.Errorf("InFeatures() = %d, want 10", layer.InFeatures())
	}
	if layer.OutFeatures() != 5 {
		t.Errorf("OutFeatures() = %d, want 5", layer.OutFeatures())
	}

	if !shapeEqual(layer.Weight().Tensor().Shape(), tensor.Shape{5, 10}) {
		t.Errorf("Weight shape = %v, want [5, 10]", layer.Weight().Tensor().Shape())
	}
	if !shapeEqual(layer.Bias().Tensor().Shape(), tensor.Shape{5}) {
		t.Errorf("Bias shape = %v, want [5]", layer.Bias().Tensor().Shape())
	}

	for i, v := range layer.Bias().Tensor().Data() {
		if v != 0 {
			t.Errorf("Bias[%d] = %v, want 0", i, v)
		}
	}

	if len(layer.Parameters()) != 2 {
		t.Errorf("Parameters() length = %d, want 2", len(layer.Parameters()))
	}
}

// TestLinear_NoBias tests the bias-free variant.
func TestLinear_NoBias(t *testing.T) {
	backend := autodiff.New(cpu.New())

	layer := NewLinear(4, 3, false, backend)

	if layer.Bias() != nil {
		t.Error("Bias() should be nil when bias is disabled")
	}
	if len(layer.Parameters()) != 1 {
		t.Errorf("Parameters() length = %d, want 1", len(layer.Parameters()))
	}

	input := tensor.Randn[float32](tensor.Shape{2, 4}, backend)
	output := layer.Forward(input)

	if !shapeEqual(output.Shape(), tensor.Shape{2, 3}) {
		t.Errorf("Output shape = %v, want [2, 3]", output.Shape())
	}
}

// TestLinear_Forward tests y = x @ W.T + b against hand-computed values.
func TestLinear_Forward(t *testing.T) {
	backend := autodiff.New(cpu.New())

	// W = [[1, 2, 3], [4, 5, 6]], b = [0.5, -0.5]
	weight, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("Failed to create weight: %v", err)
	}
	layer := NewLinearFromWeight(weight, true, backend)
	copy(layer.Bias().Tensor().Data(), []float32{0.5, -0.5})

	// x = [[1, 0, -1], [0.5, 1, 2]]
	input, err := tensor.FromSlice([]float32{1, 0, -1, 0.5, 1, 2}, tensor.Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}

	output := layer.Forward(input)

	// Row 0: [1-3, 4-6] + b = [-1.5, -2.5]
	// Row 1: [0.5+2+6, 2+5+12] + b = [9, 18.5]
	expected := []float32{-1.5, -2.5, 9, 18.5}
	for i, exp := range expected {
		if math.Abs(float64(output.Data()[i]-exp)) > 1e-5 {
			t.Errorf("Output[%d] = %v, want %v", i, output.Data()[i], exp)
		}
	}
}

// TestLinear_Forward3D tests that leading dimensions are flattened for the
// multiply and restored afterwards.
func TestLinear_Forward3D(t *testing.T) {
	backend := autodiff.New(cpu.New())

	layer := NewLinear(4, 3, true, backend)

	batch, seqLen := 2, 5
	input := rampTensor(tensor.Shape{batch, seqLen, 4}, backend)

	output := layer.Forward(input)
	if !shapeEqual(output.Shape(), tensor.Shape{batch, seqLen, 3}) {
		t.Fatalf("Output shape = %v, want [%d, %d, 3]", output.Shape(), batch, seqLen)
	}

	// The 3D result must match running the flattened rows through the
	// same layer as a plain 2D batch.
	flat := layer.Forward(input.Reshape(batch*seqLen, 4))

	outputData := output.Data()
	flatData := flat.Data()
	for i := range outputData {
		if outputData[i] != flatData[i] {
			t.Fatalf("Output[%d] = %v, flattened run = %v", i, outputData[i], flatData[i])
		}
	}
}

// TestLinear_FromWeightDerivesDims tests dimension inference from the weight.
func TestLinear_FromWeightDerivesDims(t *testing.T) {
	backend := autodiff.New(cpu.New())

	weight := NormalInit(0.1, tensor.Shape{6, 4}, backend)
	layer := NewLinearFromWeight(weight, false, backend)

	if layer.InFeatures() != 4 {
		t.Errorf("InFeatures() = %d, want 4", layer.InFeatures())
	}
	if layer.OutFeatures() != 6 {
		t.Errorf("OutFeatures() = %d, want 6", layer.OutFeatures())
	}
	if layer.Weight().Tensor() != weight {
		t.Error("Weight() should wrap the provided tensor")
	}
}

// TestLinear_FromWeightRankPanic tests weight rank validation.
func TestLinear_FromWeightRankPanic(t *testing.T) {
	backend := cpu.New()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for 1D weight, got none")
		}
	}()

	weight := tensor.Randn[float32](tensor.Shape{6}, backend)
	NewLinearFromWeight(weight, false, backend)
}

// TestLinear_ForwardFeatureMismatch tests input feature validation.
func TestLinear_ForwardFeatureMismatch(t *testing.T) {
	backend := cpu.New()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for feature mismatch, got none")
		}
	}()

	layer := NewLinear(4, 3, true, backend)
	input := tensor.Randn[float32](tensor.Shape{2, 5}, backend)
	layer.Forward(input)
}

// TestLinear_ForwardRankPanic tests input rank validation.
func TestLinear_ForwardRankPanic(t *testing.T) {
	backend := cpu.New()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for 1D input, got none")
		}
	}()

	layer := NewLinear(4, 3, true, backend)
	input := tensor.Randn[float32](tensor.Shape{4}, backend)
	layer.Forward(input)
}

// TestLinear_StateDict tests the state dict round trip and error paths.
func TestLinear_StateDict(t *testing.T) {
	backend := autodiff.New(cpu.New())

	src := NewLinear(4, 3, true, backend)
	dst := NewLinear(4, 3, true, backend)

	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	srcWeight := src.Weight().Tensor().Data()
	dstWeight := dst.Weight().Tensor().Data()
	for i := range srcWeight {
		if srcWeight[i] != dstWeight[i] {
			t.Fatalf("Weight[%d] not loaded", i)
		}
	}

	// Missing keys must fail.
	if err := dst.LoadStateDict(map[string]*tensor.RawTensor{}); err == nil {
		t.Error("Expected error for empty state dict, got nil")
	}

	// Mismatched shapes must fail.
	other := NewLinear(5, 3, true, backend)
	if err := dst.LoadStateDict(other.StateDict()); err == nil {
		t.Error("Expected error for mismatched weight shape, got nil")
	}

	// A bias entry must not load silently into a bias-free layer.
	biasless := NewLinear(4, 3, false, backend)
	if err := biasless.LoadStateDict(src.StateDict()); err == nil {
		t.Error("Expected error loading biased state dict into bias-free layer, got nil")
	}
}
