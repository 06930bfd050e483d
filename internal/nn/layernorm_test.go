package nn

import (
	"math"
	"testing"

	"github.com/strand-ml/strand/internal/autodiff"
	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/backend/hwy"
	"github.com/strand-ml/strand/internal/tensor"
)

// TestLayerNorm_Basic tests normalization against hand-computed values.
func TestLayerNorm_Basic(t *testing.T) {
	backend := autodiff.New(cpu.New())

	layernorm := NewLayerNorm(3, 1e-5, backend)

	input, err := tensor.FromSlice(
		[]float32{1, 2, 3, 4, 5, 6},
		tensor.Shape{2, 3},
		backend,
	)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}

	output := layernorm.Forward(input)

	if !shapeEqual(output.Shape(), tensor.Shape{2, 3}) {
		t.Fatalf("Output shape = %v, expected [2, 3]", output.Shape())
	}

	// Both rows center to [-1, 0, 1] with variance 2/3, so normalization
	// scales them by 1/sqrt(2/3 + eps).
	scale := float32(1.0 / math.Sqrt(2.0/3.0+1e-5))
	expected := []float32{-scale, 0, scale, -scale, 0, scale}

	for i, exp := range expected {
		if math.Abs(float64(output.Data()[i]-exp)) > 1e-4 {
			t.Errorf("Output[%d] = %v, expected %v", i, output.Data()[i], exp)
		}
	}
}

// TestLayerNorm_GammaBeta tests the learnable gain and shift.
func TestLayerNorm_GammaBeta(t *testing.T) {
	backend := autodiff.New(cpu.New())

	layernorm := NewLayerNorm(3, 1e-5, backend)

	gamma := layernorm.Gamma.Tensor().Data()
	beta := layernorm.Beta.Tensor().Data()
	for i := range gamma {
		gamma[i] = 2
		beta[i] = 1
	}

	input, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{1, 3}, backend)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}

	output := layernorm.Forward(input)

	scale := float32(1.0 / math.Sqrt(2.0/3.0+1e-5))
	expected := []float32{-2*scale + 1, 1, 2*scale + 1}

	for i, exp := range expected {
		if math.Abs(float64(output.Data()[i]-exp)) > 1e-4 {
			t.Errorf("Output[%d] = %v, expected %v", i, output.Data()[i], exp)
		}
	}
}

// TestLayerNorm_RowStatistics tests that normalized rows have mean ~0 and
// variance ~1 under unit gain and zero shift.
func TestLayerNorm_RowStatistics(t *testing.T) {
	backend := autodiff.New(cpu.New())

	features := 16
	layernorm := NewLayerNorm(features, 1e-5, backend)

	input := tensor.Randn[float32](tensor.Shape{4, 5, features}, backend)
	output := layernorm.Forward(input)

	data := output.Data()
	for r := 0; r < 4*5; r++ {
		row := data[r*features : (r+1)*features]

		var sum float64
		for _, v := range row {
			sum += float64(v)
		}
		mean := sum / float64(features)

		var variance float64
		for _, v := range row {
			variance += (float64(v) - mean) * (float64(v) - mean)
		}
		variance /= float64(features)

		if math.Abs(mean) > 0.01 {
			t.Errorf("Row %d mean = %v, expected ~0", r, mean)
		}
		if math.Abs(variance-1.0) > 0.05 {
			t.Errorf("Row %d variance = %v, expected ~1", r, variance)
		}
	}
}

// TestLayerNorm_Parameters tests the default gain and shift values.
func TestLayerNorm_Parameters(t *testing.T) {
	backend := autodiff.New(cpu.New())

	layernorm := NewLayerNorm(4, 1e-5, backend)

	params := layernorm.Parameters()
	if len(params) != 2 {
		t.Fatalf("Parameters() length = %d, want 2", len(params))
	}

	for _, v := range layernorm.Gamma.Tensor().Data() {
		if v != 1 {
			t.Errorf("Gamma = %v, expected 1", v)
		}
	}
	for _, v := range layernorm.Beta.Tensor().Data() {
		if v != 0 {
			t.Errorf("Beta = %v, expected 0", v)
		}
	}
}

// TestLayerNorm_FusedKernelAgreement tests that the SIMD backend's fused
// row normalization matches the composed tensor-op path.
func TestLayerNorm_FusedKernelAgreement(t *testing.T) {
	composed := autodiff.New(cpu.New())
	fused := hwy.New()
	defer fused.Release()

	features := 8
	composedNorm := NewLayerNorm(features, 1e-5, composed)
	fusedNorm := NewLayerNorm(features, 1e-5, fused)

	// Shared non-trivial gain and shift.
	for i := 0; i < features; i++ {
		composedNorm.Gamma.Tensor().Data()[i] = 0.5 + 0.25*float32(i)
		composedNorm.Beta.Tensor().Data()[i] = -1 + 0.5*float32(i)
		fusedNorm.Gamma.Tensor().Data()[i] = 0.5 + 0.25*float32(i)
		fusedNorm.Beta.Tensor().Data()[i] = -1 + 0.5*float32(i)
	}

	composedOut := composedNorm.Forward(rampTensor(tensor.Shape{2, 3, features}, composed))
	fusedOut := fusedNorm.Forward(rampTensor(tensor.Shape{2, 3, features}, fused))

	composedData := composedOut.Data()
	fusedData := fusedOut.Data()
	for i := range composedData {
		if diff := math.Abs(float64(composedData[i] - fusedData[i])); diff > 1e-3 {
			t.Errorf("Output[%d]: composed = %v, fused = %v (diff %v)",
				i, composedData[i], fusedData[i], diff)
		}
	}
}

// TestLayerNorm_StateDict tests the state dict key set and a load round trip.
func TestLayerNorm_StateDict(t *testing.T) {
	backend := autodiff.New(cpu.New())

	src := NewLayerNorm(4, 1e-5, backend)
	for i := range src.Gamma.Tensor().Data() {
		src.Gamma.Tensor().Data()[i] = float32(i) + 1
		src.Beta.Tensor().Data()[i] = -float32(i)
	}

	stateDict := src.StateDict()
	if _, ok := stateDict["gamma"]; !ok {
		t.Error("StateDict missing key \"gamma\"")
	}
	if _, ok := stateDict["beta"]; !ok {
		t.Error("StateDict missing key \"beta\"")
	}

	dst := NewLayerNorm(4, 1e-5, backend)
	if err := dst.LoadStateDict(stateDict); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	for i := range src.Gamma.Tensor().Data() {
		if dst.Gamma.Tensor().Data()[i] != src.Gamma.Tensor().Data()[i] {
			t.Errorf("Gamma[%d] not loaded", i)
		}
		if dst.Beta.Tensor().Data()[i] != src.Beta.Tensor().Data()[i] {
			t.Errorf("Beta[%d] not loaded", i)
		}
	}

	// Loading a mismatched shape must fail.
	wrong := NewLayerNorm(8, 1e-5, backend)
	if err := wrong.LoadStateDict(stateDict); err == nil {
		t.Error("Expected error for mismatched shape, got nil")
	}
}
