package autodiff_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/strand-ml/strand/internal/autodiff"
	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

const (
	fdEpsilon   = 1e-6
	fdTolerance = 1e-6
)

// pipeline builds a scalar loss from the inputs using backend operations.
// It runs once on the autodiff backend to collect gradients and repeatedly
// on the plain backend for finite-difference evaluations, so it must be
// deterministic and must not hold state between calls.
type pipeline func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor

// checkGradients compares tape gradients against central finite differences
// for every element of every input.
func checkGradients(t *testing.T, inputs []*tensor.RawTensor, forward pipeline) {
	t.Helper()

	ad := autodiff.New(cpu.New())
	ad.Tape().StartRecording()

	loss := forward(ad, inputs)
	if loss.NumElements() != 1 {
		t.Fatalf("pipeline loss must be scalar, got shape %v", loss.Shape())
	}

	seed, err := tensor.NewRaw(loss.Shape(), tensor.Float64, tensor.CPU)
	if err != nil {
		t.Fatalf("failed to create seed gradient: %v", err)
	}
	seed.AsFloat64()[0] = 1

	grads := ad.Tape().Backward(seed, ad)
	ad.Tape().StopRecording()

	// Finite differences run on the undecorated backend. Pin the inputs so
	// element-wise ops cannot reuse their buffers in place between
	// perturbed evaluations.
	plain := cpu.New()
	for _, in := range inputs {
		release := in.ForceNonUnique()
		defer release()
	}
	eval := func() float64 {
		return forward(plain, inputs).AsFloat64()[0]
	}

	for idx, in := range inputs {
		grad := grads[in]
		if grad == nil {
			t.Fatalf("no gradient recorded for input %d", idx)
		}
		if !grad.Shape().Equal(in.Shape()) {
			t.Fatalf("input %d: gradient shape %v, want %v", idx, grad.Shape(), in.Shape())
		}

		gradData := grad.AsFloat64()
		inData := in.AsFloat64()
		for e := range inData {
			orig := inData[e]
			inData[e] = orig + fdEpsilon
			plus := eval()
			inData[e] = orig - fdEpsilon
			minus := eval()
			inData[e] = orig

			numeric := (plus - minus) / (2 * fdEpsilon)
			if math.Abs(gradData[e]-numeric) > fdTolerance*(1+math.Abs(numeric)) {
				t.Errorf("input %d element %d: tape gradient %g, finite difference %g",
					idx, e, gradData[e], numeric)
			}
		}
	}
}

// randomTensor fills a float64 tensor with values in [-1, 1).
func randomTensor(t *testing.T, rng *rand.Rand, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	if err != nil {
		t.Fatalf("failed to create tensor: %v", err)
	}
	data := raw.AsFloat64()
	for i := range data {
		data[i] = rng.Float64()*2 - 1
	}
	return raw
}

// positiveTensor fills a float64 tensor with values in [0.5, 2.5), for ops
// with positive domains (Sqrt, Rsqrt, divisors).
func positiveTensor(t *testing.T, rng *rand.Rand, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	if err != nil {
		t.Fatalf("failed to create tensor: %v", err)
	}
	data := raw.AsFloat64()
	for i := range data {
		data[i] = rng.Float64()*2 + 0.5
	}
	return raw
}

// rampTensor fills a tensor with 0.1, 0.2, 0.3, ... Used as a fixed weight
// so that otherwise-symmetric losses produce distinct per-element gradients.
func rampTensor(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	if err != nil {
		t.Fatalf("failed to create weight tensor: %v", err)
	}
	data := raw.AsFloat64()
	for i := range data {
		data[i] = 0.1 * float64(i+1)
	}
	return raw
}

// checkerboard builds a bool tensor with alternating true/false.
func checkerboard(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Bool, tensor.CPU)
	if err != nil {
		t.Fatalf("failed to create condition tensor: %v", err)
	}
	data := raw.AsBool()
	for i := range data {
		data[i] = i%2 == 0
	}
	return raw
}

func TestNumericalGradient_ElementwiseChain(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := randomTensor(t, rng, tensor.Shape{2, 3})
	y := randomTensor(t, rng, tensor.Shape{2, 3})

	// loss = sum((x+y) * (x-y)); x feeds two paths, so its gradient
	// accumulates.
	checkGradients(t, []*tensor.RawTensor{x, y}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		sum := b.Add(in[0], in[1])
		diff := b.Sub(in[0], in[1])
		return b.Sum(b.Mul(sum, diff))
	})
}

func TestNumericalGradient_Division(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	x := randomTensor(t, rng, tensor.Shape{2, 3})
	y := positiveTensor(t, rng, tensor.Shape{2, 3})

	checkGradients(t, []*tensor.RawTensor{x, y}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		q := b.Div(in[0], in[1])
		return b.Sum(b.Mul(q, rampTensor(t, tensor.Shape{2, 3})))
	})
}

func TestNumericalGradient_BroadcastArithmetic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	x := randomTensor(t, rng, tensor.Shape{2, 3})
	rowBias := randomTensor(t, rng, tensor.Shape{3})
	colBias := randomTensor(t, rng, tensor.Shape{2, 1})

	// Both bias gradients must be reduced back across their broadcast
	// dimensions.
	checkGradients(t, []*tensor.RawTensor{x, rowBias, colBias}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		h := b.Add(in[0], in[1])
		h = b.Add(h, in[2])
		return b.Sum(b.Mul(h, rampTensor(t, tensor.Shape{2, 3})))
	})
}

func TestNumericalGradient_ScalarPipeline(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	x := randomTensor(t, rng, tensor.Shape{2, 3})

	checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		h := b.AddScalar(in[0], float64(0.5))
		h = b.MulScalar(h, float64(2.0))
		h = b.DivScalar(h, float64(4.0))
		return b.Sum(b.Mul(h, rampTensor(t, tensor.Shape{2, 3})))
	})
}

func TestNumericalGradient_Exp(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	x := randomTensor(t, rng, tensor.Shape{2, 3})

	checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		return b.Sum(b.Mul(b.Exp(in[0]), rampTensor(t, tensor.Shape{2, 3})))
	})
}

func TestNumericalGradient_Sqrt(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	x := positiveTensor(t, rng, tensor.Shape{2, 3})

	checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		return b.Sum(b.Mul(b.Sqrt(in[0]), rampTensor(t, tensor.Shape{2, 3})))
	})
}

func TestNumericalGradient_Rsqrt(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x := positiveTensor(t, rng, tensor.Shape{2, 3})

	checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		return b.Sum(b.Mul(b.Rsqrt(in[0]), rampTensor(t, tensor.Shape{2, 3})))
	})
}

func TestNumericalGradient_ReLU(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	// Values in [-1,1) stay clear of the kink at 0 relative to fdEpsilon
	// with overwhelming probability for this seed.
	x := randomTensor(t, rng, tensor.Shape{3, 4})

	checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		return b.Sum(b.Mul(b.ReLU(in[0]), rampTensor(t, tensor.Shape{3, 4})))
	})
}

func TestNumericalGradient_MatMul(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	a := randomTensor(t, rng, tensor.Shape{3, 4})
	b := randomTensor(t, rng, tensor.Shape{4, 2})

	checkGradients(t, []*tensor.RawTensor{a, b}, func(bk tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		c := bk.MatMul(in[0], in[1])
		return bk.Sum(bk.Mul(c, rampTensor(t, tensor.Shape{3, 2})))
	})
}

func TestNumericalGradient_BatchMatMul(t *testing.T) {
	t.Run("Batched3D", func(t *testing.T) {
		rng := rand.New(rand.NewSource(10))
		a := randomTensor(t, rng, tensor.Shape{2, 3, 4})
		b := randomTensor(t, rng, tensor.Shape{2, 4, 2})

		checkGradients(t, []*tensor.RawTensor{a, b}, func(bk tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			c := bk.BatchMatMul(in[0], in[1])
			return bk.Sum(bk.Mul(c, rampTensor(t, tensor.Shape{2, 3, 2})))
		})
	})

	t.Run("BroadcastLeft2D", func(t *testing.T) {
		rng := rand.New(rand.NewSource(11))
		a := randomTensor(t, rng, tensor.Shape{3, 4})
		b := randomTensor(t, rng, tensor.Shape{2, 4, 2})

		// The 2D operand's gradient sums the per-batch contributions.
		checkGradients(t, []*tensor.RawTensor{a, b}, func(bk tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			c := bk.BatchMatMul(in[0], in[1])
			return bk.Sum(bk.Mul(c, rampTensor(t, tensor.Shape{2, 3, 2})))
		})
	})

	t.Run("BroadcastRight2D", func(t *testing.T) {
		rng := rand.New(rand.NewSource(12))
		a := randomTensor(t, rng, tensor.Shape{2, 3, 4})
		b := randomTensor(t, rng, tensor.Shape{4, 2})

		checkGradients(t, []*tensor.RawTensor{a, b}, func(bk tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			c := bk.BatchMatMul(in[0], in[1])
			return bk.Sum(bk.Mul(c, rampTensor(t, tensor.Shape{2, 3, 2})))
		})
	})
}

func TestNumericalGradient_Conv1D(t *testing.T) {
	t.Run("KernelWidth3", func(t *testing.T) {
		rng := rand.New(rand.NewSource(13))
		input := randomTensor(t, rng, tensor.Shape{2, 3, 5})
		kernel := randomTensor(t, rng, tensor.Shape{4, 3, 3})

		checkGradients(t, []*tensor.RawTensor{input, kernel}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			out := b.Conv1D(in[0], in[1], 1, 0)
			return b.Sum(b.Mul(out, rampTensor(t, tensor.Shape{2, 4, 3})))
		})
	})

	t.Run("KernelWidth1", func(t *testing.T) {
		rng := rand.New(rand.NewSource(14))
		input := randomTensor(t, rng, tensor.Shape{2, 3, 5})
		kernel := randomTensor(t, rng, tensor.Shape{4, 3, 1})

		checkGradients(t, []*tensor.RawTensor{input, kernel}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			out := b.Conv1D(in[0], in[1], 1, 0)
			return b.Sum(b.Mul(out, rampTensor(t, tensor.Shape{2, 4, 5})))
		})
	})
}

func TestNumericalGradient_Softmax(t *testing.T) {
	dims := []struct {
		name string
		dim  int
	}{
		{"LastDim", 2},
		{"MiddleDim", 1},
		{"NegativeDim", -1},
	}

	for i, tc := range dims {
		t.Run(tc.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(20 + i)))
			x := randomTensor(t, rng, tensor.Shape{2, 3, 4})

			checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
				sm := b.Softmax(in[0], tc.dim)
				return b.Sum(b.Mul(sm, rampTensor(t, tensor.Shape{2, 3, 4})))
			})
		})
	}
}

func TestNumericalGradient_Reductions(t *testing.T) {
	t.Run("Sum", func(t *testing.T) {
		rng := rand.New(rand.NewSource(30))
		x := randomTensor(t, rng, tensor.Shape{2, 3, 4})

		checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			return b.Sum(in[0])
		})
	})

	t.Run("SumDimKeep", func(t *testing.T) {
		rng := rand.New(rand.NewSource(31))
		x := randomTensor(t, rng, tensor.Shape{2, 3, 4})

		checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			sd := b.SumDim(in[0], 1, true)
			return b.Sum(b.Mul(sd, rampTensor(t, tensor.Shape{2, 1, 4})))
		})
	})

	t.Run("SumDimDrop", func(t *testing.T) {
		rng := rand.New(rand.NewSource(32))
		x := randomTensor(t, rng, tensor.Shape{2, 3, 4})

		checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			sd := b.SumDim(in[0], 1, false)
			return b.Sum(b.Mul(sd, rampTensor(t, tensor.Shape{2, 4})))
		})
	})

	t.Run("MeanDim", func(t *testing.T) {
		rng := rand.New(rand.NewSource(33))
		x := randomTensor(t, rng, tensor.Shape{2, 3, 4})

		checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			md := b.MeanDim(in[0], 2, false)
			return b.Sum(b.Mul(md, rampTensor(t, tensor.Shape{2, 3})))
		})
	})
}

func TestNumericalGradient_ShapeOps(t *testing.T) {
	rng := rand.New(rand.NewSource(40))
	x := randomTensor(t, rng, tensor.Shape{2, 3, 4})

	checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		tr := b.Transpose(in[0], 0, 2, 1)            // (2,4,3)
		rs := b.Reshape(tr, tensor.Shape{8, 3})      // (8,3)
		us := b.Unsqueeze(rs, 0)                     // (1,8,3)
		sq := b.Squeeze(us, 0)                       // (8,3)
		return b.Sum(b.Mul(sq, rampTensor(t, tensor.Shape{8, 3})))
	})
}

func TestNumericalGradient_TransposeDefaultAxes(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	x := randomTensor(t, rng, tensor.Shape{2, 3, 4})

	// No axes reverses all dimensions; the recorded op must carry the
	// resolved permutation for the backward pass.
	checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		tr := b.Transpose(in[0]) // (4,3,2)
		return b.Sum(b.Mul(tr, rampTensor(t, tensor.Shape{4, 3, 2})))
	})
}

func TestNumericalGradient_Cat(t *testing.T) {
	t.Run("MiddleDim", func(t *testing.T) {
		rng := rand.New(rand.NewSource(50))
		a := randomTensor(t, rng, tensor.Shape{2, 2, 3})
		c := randomTensor(t, rng, tensor.Shape{2, 1, 3})

		checkGradients(t, []*tensor.RawTensor{a, c}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			cat := b.Cat([]*tensor.RawTensor{in[0], in[1]}, 1) // (2,3,3)
			return b.Sum(b.Mul(cat, rampTensor(t, tensor.Shape{2, 3, 3})))
		})
	})

	t.Run("NegativeDim", func(t *testing.T) {
		rng := rand.New(rand.NewSource(51))
		a := randomTensor(t, rng, tensor.Shape{2, 2, 2})
		c := randomTensor(t, rng, tensor.Shape{2, 2, 1})

		checkGradients(t, []*tensor.RawTensor{a, c}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			cat := b.Cat([]*tensor.RawTensor{in[0], in[1]}, -1) // (2,2,3)
			return b.Sum(b.Mul(cat, rampTensor(t, tensor.Shape{2, 2, 3})))
		})
	})
}

func TestNumericalGradient_Expand(t *testing.T) {
	rng := rand.New(rand.NewSource(52))
	x := randomTensor(t, rng, tensor.Shape{2, 1, 3})

	checkGradients(t, []*tensor.RawTensor{x}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		ex := b.Expand(in[0], tensor.Shape{2, 4, 3})
		return b.Sum(b.Mul(ex, rampTensor(t, tensor.Shape{2, 4, 3})))
	})
}

func TestNumericalGradient_Where(t *testing.T) {
	t.Run("SameShape", func(t *testing.T) {
		rng := rand.New(rand.NewSource(60))
		x := randomTensor(t, rng, tensor.Shape{2, 3})
		y := randomTensor(t, rng, tensor.Shape{2, 3})

		checkGradients(t, []*tensor.RawTensor{x, y}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			cond := checkerboard(t, tensor.Shape{2, 3})
			out := b.Where(cond, in[0], in[1])
			return b.Sum(b.Mul(out, rampTensor(t, tensor.Shape{2, 3})))
		})
	})

	t.Run("MaskFill", func(t *testing.T) {
		rng := rand.New(rand.NewSource(61))
		x := randomTensor(t, rng, tensor.Shape{2, 3})
		fill := randomTensor(t, rng, tensor.Shape{1})

		// The single-element fill value gradient sums over every masked
		// position, the same reduction attention masking relies on.
		checkGradients(t, []*tensor.RawTensor{x, fill}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
			cond := checkerboard(t, tensor.Shape{2, 3})
			out := b.Where(cond, in[0], in[1])
			return b.Sum(b.Mul(out, rampTensor(t, tensor.Shape{2, 3})))
		})
	})
}

// TestNumericalGradient_AttentionPipeline walks a full scaled dot-product
// attention forward pass and checks the gradients of queries, keys and
// values end to end.
func TestNumericalGradient_AttentionPipeline(t *testing.T) {
	rng := rand.New(rand.NewSource(70))
	q := randomTensor(t, rng, tensor.Shape{2, 3, 4})
	k := randomTensor(t, rng, tensor.Shape{2, 3, 4})
	v := randomTensor(t, rng, tensor.Shape{2, 3, 4})

	checkGradients(t, []*tensor.RawTensor{q, k, v}, func(b tensor.Backend, in []*tensor.RawTensor) *tensor.RawTensor {
		kT := b.Transpose(in[1], 0, 2, 1)       // (2,4,3)
		scores := b.BatchMatMul(in[0], kT)      // (2,3,3)
		scaled := b.DivScalar(scores, float64(2)) // temperature sqrt(d_k)
		attn := b.Softmax(scaled, 2)
		out := b.BatchMatMul(attn, in[2]) // (2,3,4)
		return b.Sum(b.Mul(out, rampTensor(t, tensor.Shape{2, 3, 4})))
	})
}
