package nn

import (
	"testing"

	"github.com/strand-ml/strand/internal/autodiff"
	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDropout_TrainingStatistics tests that training mode drops roughly p of
// the elements and scales the survivors by 1/(1-p).
func TestDropout_TrainingStatistics(t *testing.T) {
	backend := autodiff.New(cpu.New())

	p := float32(0.25)
	dropout := NewDropout(p, backend)
	require.True(t, dropout.Training(), "dropout starts in training mode")

	SetDropoutSeed(42)
	input := tensor.Ones[float32](tensor.Shape{100, 100}, backend)
	output := dropout.Forward(input)

	scale := 1 / (1 - p)
	zeros := 0
	for i, v := range output.Data() {
		switch v {
		case 0:
			zeros++
		case scale:
			// survivor
		default:
			t.Fatalf("Output[%d] = %v, expected 0 or %v", i, v, scale)
		}
	}

	rate := float64(zeros) / float64(len(output.Data()))
	assert.InDelta(t, float64(p), rate, 0.02, "drop rate should be near p")
}

// TestDropout_InferenceIdentity tests that inference mode passes the input
// through untouched.
func TestDropout_InferenceIdentity(t *testing.T) {
	backend := autodiff.New(cpu.New())

	dropout := NewDropout(0.5, backend)
	dropout.SetTraining(false)

	input := rampTensor(tensor.Shape{4, 4}, backend)
	output := dropout.Forward(input)

	assert.Same(t, input, output, "inference mode returns the input tensor")
}

// TestDropout_ZeroProbability tests that p=0 is the identity even in
// training mode.
func TestDropout_ZeroProbability(t *testing.T) {
	backend := autodiff.New(cpu.New())

	dropout := NewDropout(0, backend)

	input := rampTensor(tensor.Shape{3, 3}, backend)
	output := dropout.Forward(input)

	assert.Same(t, input, output)
}

// TestDropout_SeededDeterminism tests that reseeding reproduces the masks.
func TestDropout_SeededDeterminism(t *testing.T) {
	backend := autodiff.New(cpu.New())

	dropout := NewDropout(0.5, backend)
	input := tensor.Ones[float32](tensor.Shape{8, 8}, backend)

	SetDropoutSeed(7)
	first := dropout.Forward(input)

	SetDropoutSeed(7)
	second := dropout.Forward(input)

	assert.Equal(t, first.Data(), second.Data())

	// Without reseeding, the next draw uses a fresh mask.
	third := dropout.Forward(input)
	assert.NotEqual(t, second.Data(), third.Data())
}

// TestDropout_InvalidProbability tests constructor validation.
func TestDropout_InvalidProbability(t *testing.T) {
	backend := cpu.New()

	assert.Panics(t, func() { NewDropout(float32(1.5), backend) })
	assert.Panics(t, func() { NewDropout(float32(-0.1), backend) })
}

// TestDropout_Accessors tests the probability and mode accessors.
func TestDropout_Accessors(t *testing.T) {
	backend := cpu.New()

	dropout := NewDropout(0.3, backend)
	assert.InDelta(t, 0.3, float64(dropout.P()), 1e-6)
	assert.True(t, dropout.Training())

	dropout.SetTraining(false)
	assert.False(t, dropout.Training())

	assert.Empty(t, dropout.Parameters())
}
