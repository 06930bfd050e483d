package autodiff_test

import (
	"math"
	"testing"

	"github.com/strand-ml/strand/internal/autodiff"
	"github.com/strand-ml/strand/internal/backend/cpu"
	"github.com/strand-ml/strand/internal/tensor"
)

func TestBackend_Name(t *testing.T) {
	backend := autodiff.New(cpu.New())
	expected := "autodiff(cpu)"
	if backend.Name() != expected {
		t.Errorf("Name() = %s, want %s", backend.Name(), expected)
	}
}

func TestBackend_Device(t *testing.T) {
	backend := autodiff.New(cpu.New())
	if backend.Device() != tensor.CPU {
		t.Errorf("Device() = %v, want %v", backend.Device(), tensor.CPU)
	}
}

func TestBackend_Inner(t *testing.T) {
	cpuBackend := cpu.New()
	backend := autodiff.New(cpuBackend)

	if backend.Inner().Name() != cpuBackend.Name() {
		t.Errorf("Inner().Name() = %s, want %s", backend.Inner().Name(), cpuBackend.Name())
	}
}

func TestTape_Recording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	if tape.IsRecording() {
		t.Error("tape should not be recording initially")
	}

	tape.StartRecording()
	if !tape.IsRecording() {
		t.Error("tape should be recording after StartRecording()")
	}

	tape.StopRecording()
	if tape.IsRecording() {
		t.Error("tape should not be recording after StopRecording()")
	}
}

func TestTape_Clear(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	tape.StartRecording()

	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{2}, backend)
	backend.Add(a.Raw(), b.Raw())

	if tape.NumOps() == 0 {
		t.Error("tape should have recorded operations")
	}

	tape.Clear()

	if tape.NumOps() != 0 {
		t.Errorf("tape should be empty after Clear(), got %d ops", tape.NumOps())
	}

	// Clear preserves recording state so training loops can reset between
	// steps without toggling.
	if !tape.IsRecording() {
		t.Error("tape should still be recording after Clear()")
	}
}

func TestBackend_RecordsWhileRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	tape.StartRecording()

	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{2}, backend)

	result := backend.Add(a.Raw(), b.Raw())

	expected := []float32{4, 6}
	actual := result.AsFloat32()
	for i, v := range expected {
		if actual[i] != v {
			t.Errorf("Add result[%d] = %f, want %f", i, actual[i], v)
		}
	}

	if tape.NumOps() != 1 {
		t.Errorf("expected 1 operation recorded, got %d", tape.NumOps())
	}
}

func TestBackend_NoRecordingWhenTapeOff(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{2}, backend)

	backend.Add(a.Raw(), b.Raw())

	if tape.NumOps() != 0 {
		t.Errorf("expected 0 operations recorded with tape off, got %d", tape.NumOps())
	}
}

func TestBackward_EmptyTape(t *testing.T) {
	backend := autodiff.New(cpu.New())

	seed, _ := tensor.FromSlice([]float32{1}, tensor.Shape{1}, backend)
	grads := backend.Tape().Backward(seed.Raw(), backend)

	if len(grads) != 0 {
		t.Errorf("Backward on empty tape should return no gradients, got %d", len(grads))
	}
}

func TestBackward_Addition(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a, _ := tensor.FromSlice([]float32{2, 3}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{4, 5}, tensor.Shape{2}, backend)

	result := tensor.New[float32](backend.Add(a.Raw(), b.Raw()), backend)
	gradients := autodiff.Backward(result, backend)

	gradA := gradients[a.Raw()]
	gradB := gradients[b.Raw()]
	if gradA == nil || gradB == nil {
		t.Fatal("expected gradients for both inputs")
	}

	for i, v := range []float32{1, 1} {
		if gradA.AsFloat32()[i] != v {
			t.Errorf("grad_a[%d] = %f, want %f", i, gradA.AsFloat32()[i], v)
		}
		if gradB.AsFloat32()[i] != v {
			t.Errorf("grad_b[%d] = %f, want %f", i, gradB.AsFloat32()[i], v)
		}
	}
}

func TestBackward_Multiplication(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a, _ := tensor.FromSlice([]float32{2, 3}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{4, 5}, tensor.Shape{2}, backend)

	result := tensor.New[float32](backend.Mul(a.Raw(), b.Raw()), backend)
	gradients := autodiff.Backward(result, backend)

	gradA := gradients[a.Raw()]
	gradB := gradients[b.Raw()]
	if gradA == nil || gradB == nil {
		t.Fatal("expected gradients for both inputs")
	}

	// d(a*b)/da = b, d(a*b)/db = a
	expectedGradA := []float32{4, 5}
	expectedGradB := []float32{2, 3}

	for i := range expectedGradA {
		if gradA.AsFloat32()[i] != expectedGradA[i] {
			t.Errorf("grad_a[%d] = %f, want %f", i, gradA.AsFloat32()[i], expectedGradA[i])
		}
		if gradB.AsFloat32()[i] != expectedGradB[i] {
			t.Errorf("grad_b[%d] = %f, want %f", i, gradB.AsFloat32()[i], expectedGradB[i])
		}
	}
}

func TestBackward_ChainRule(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = (x + 2) * 3, dy/dx = 3
	x, _ := tensor.FromSlice([]float32{1}, tensor.Shape{1}, backend)
	two, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
	three, _ := tensor.FromSlice([]float32{3}, tensor.Shape{1}, backend)

	temp := backend.Add(x.Raw(), two.Raw())
	result := tensor.New[float32](backend.Mul(temp, three.Raw()), backend)

	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()]
	if gradX == nil {
		t.Fatal("expected gradient for x")
	}
	if got := gradX.AsFloat32()[0]; math.Abs(float64(got-3)) > 1e-6 {
		t.Errorf("grad_x = %f, want 3", got)
	}
}

func TestBackward_GradientAccumulation(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = x + x, dy/dx = 2
	x, _ := tensor.FromSlice([]float32{3}, tensor.Shape{1}, backend)

	result := tensor.New[float32](backend.Add(x.Raw(), x.Raw()), backend)
	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()]
	if gradX == nil {
		t.Fatal("expected gradient for x")
	}
	if got := gradX.AsFloat32()[0]; math.Abs(float64(got-2)) > 1e-6 {
		t.Errorf("grad_x = %f, want 2 (gradient should accumulate)", got)
	}
}

func TestBackward_ScalarOps(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = ((x + 1) * 3) / 2, dy/dx = 1.5
	x, _ := tensor.FromSlice([]float32{2, 4}, tensor.Shape{2}, backend)

	shifted := backend.AddScalar(x.Raw(), float32(1))
	scaled := backend.MulScalar(shifted, float32(3))
	result := tensor.New[float32](backend.DivScalar(scaled, float32(2)), backend)

	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()]
	if gradX == nil {
		t.Fatal("expected gradient for x")
	}
	for i := 0; i < 2; i++ {
		if got := gradX.AsFloat32()[i]; math.Abs(float64(got-1.5)) > 1e-6 {
			t.Errorf("grad_x[%d] = %f, want 1.5", i, got)
		}
	}
}

func TestReLU_Forward(t *testing.T) {
	backend := autodiff.New(cpu.New())

	input, _ := tensor.FromSlice([]float32{-2, -1, 0, 1, 2}, tensor.Shape{5}, backend)
	result := backend.ReLU(input.Raw())

	expected := []float32{0, 0, 0, 1, 2}
	for i, v := range expected {
		if result.AsFloat32()[i] != v {
			t.Errorf("ReLU result[%d] = %f, want %f", i, result.AsFloat32()[i], v)
		}
	}
}

func TestReLU_Backward(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{-2, -1, 0, 1, 2}, tensor.Shape{5}, backend)
	result := tensor.New[float32](backend.ReLU(x.Raw()), backend)

	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()]
	if gradX == nil {
		t.Fatal("expected gradient for x")
	}

	// dy/dx = 1 where x > 0, else 0
	expected := []float32{0, 0, 0, 1, 1}
	for i, v := range expected {
		if gradX.AsFloat32()[i] != v {
			t.Errorf("grad_x[%d] = %f, want %f", i, gradX.AsFloat32()[i], v)
		}
	}
}

func TestReLU_Backward_Float64(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float64{-2, -1, 0, 1, 2}, tensor.Shape{5}, backend)
	result := tensor.New[float64](backend.ReLU(x.Raw()), backend)

	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()]
	if gradX == nil {
		t.Fatal("expected gradient for x")
	}

	expected := []float64{0, 0, 0, 1, 1}
	for i, v := range expected {
		if gradX.AsFloat64()[i] != v {
			t.Errorf("grad_x[%d] = %f, want %f", i, gradX.AsFloat64()[i], v)
		}
	}
}

func TestMatMul_Backward(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a, _ := tensor.FromSlice([]float32{
		1, 2, 3,
		4, 5, 6,
	}, tensor.Shape{2, 3}, backend)

	b, _ := tensor.FromSlice([]float32{
		7, 8,
		9, 10,
		11, 12,
	}, tensor.Shape{3, 2}, backend)

	result := tensor.New[float32](backend.MatMul(a.Raw(), b.Raw()), backend)
	gradients := autodiff.Backward(result, backend)

	gradA := gradients[a.Raw()]
	gradB := gradients[b.Raw()]
	if gradA == nil || gradB == nil {
		t.Fatal("expected gradients for both matrices")
	}

	if !gradA.Shape().Equal(a.Shape()) {
		t.Errorf("grad_a shape = %v, want %v", gradA.Shape(), a.Shape())
	}
	if !gradB.Shape().Equal(b.Shape()) {
		t.Errorf("grad_b shape = %v, want %v", gradB.Shape(), b.Shape())
	}

	// Seeded with ones: grad_a = 1 @ b^T (row sums of b per column),
	// grad_b = a^T @ 1 (column sums of a per row).
	expectedGradA := []float32{15, 19, 23, 15, 19, 23}
	expectedGradB := []float32{5, 5, 7, 7, 9, 9}

	for i, v := range expectedGradA {
		if got := gradA.AsFloat32()[i]; math.Abs(float64(got-v)) > 1e-5 {
			t.Errorf("grad_a[%d] = %f, want %f", i, got, v)
		}
	}
	for i, v := range expectedGradB {
		if got := gradB.AsFloat32()[i]; math.Abs(float64(got-v)) > 1e-5 {
			t.Errorf("grad_b[%d] = %f, want %f", i, got, v)
		}
	}
}

func TestSubtraction_Backward(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a, _ := tensor.FromSlice([]float32{5, 6}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{2, 3}, tensor.Shape{2}, backend)

	result := tensor.New[float32](backend.Sub(a.Raw(), b.Raw()), backend)
	gradients := autodiff.Backward(result, backend)

	gradA := gradients[a.Raw()]
	gradB := gradients[b.Raw()]
	if gradA == nil || gradB == nil {
		t.Fatal("expected gradients for both inputs")
	}

	for i := 0; i < 2; i++ {
		if got := gradA.AsFloat32()[i]; got != 1 {
			t.Errorf("grad_a[%d] = %f, want 1", i, got)
		}
		if got := gradB.AsFloat32()[i]; math.Abs(float64(got+1)) > 1e-6 {
			t.Errorf("grad_b[%d] = %f, want -1", i, got)
		}
	}
}

func TestDivision_Backward(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a, _ := tensor.FromSlice([]float32{6, 12}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{2, 3}, tensor.Shape{2}, backend)

	result := tensor.New[float32](backend.Div(a.Raw(), b.Raw()), backend)
	gradients := autodiff.Backward(result, backend)

	gradA := gradients[a.Raw()]
	gradB := gradients[b.Raw()]
	if gradA == nil || gradB == nil {
		t.Fatal("expected gradients for both inputs")
	}

	// d(a/b)/da = 1/b, d(a/b)/db = -a/b²
	expectedGradA := []float32{0.5, 1.0 / 3.0}
	expectedGradB := []float32{-1.5, -4.0 / 3.0}

	for i := range expectedGradA {
		if got := gradA.AsFloat32()[i]; math.Abs(float64(got-expectedGradA[i])) > 1e-5 {
			t.Errorf("grad_a[%d] = %f, want %f", i, got, expectedGradA[i])
		}
		if got := gradB.AsFloat32()[i]; math.Abs(float64(got-expectedGradB[i])) > 1e-5 {
			t.Errorf("grad_b[%d] = %f, want %f", i, got, expectedGradB[i])
		}
	}
}

func TestBackward_BroadcastAdd(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// x (2,3) + bias (3): the bias gradient sums over the broadcast rows.
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	bias, _ := tensor.FromSlice([]float32{10, 20, 30}, tensor.Shape{3}, backend)

	result := tensor.New[float32](backend.Add(x.Raw(), bias.Raw()), backend)
	gradients := autodiff.Backward(result, backend)

	gradBias := gradients[bias.Raw()]
	if gradBias == nil {
		t.Fatal("expected gradient for bias")
	}
	if !gradBias.Shape().Equal(tensor.Shape{3}) {
		t.Fatalf("grad_bias shape = %v, want [3]", gradBias.Shape())
	}
	for i := 0; i < 3; i++ {
		if got := gradBias.AsFloat32()[i]; got != 2 {
			t.Errorf("grad_bias[%d] = %f, want 2 (summed over 2 rows)", i, got)
		}
	}
}

func TestUnsqueezeSqueeze_GradientFlows(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)

	up := backend.Unsqueeze(x.Raw(), 0)
	if !up.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("Unsqueeze shape = %v, want [1 3]", up.Shape())
	}

	down := backend.Squeeze(up, 0)
	result := tensor.New[float32](backend.MulScalar(down, float32(5)), backend)

	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()]
	if gradX == nil {
		t.Fatal("expected gradient for x through unsqueeze/squeeze")
	}
	if !gradX.Shape().Equal(tensor.Shape{3}) {
		t.Fatalf("grad_x shape = %v, want [3]", gradX.Shape())
	}
	for i := 0; i < 3; i++ {
		if got := gradX.AsFloat32()[i]; got != 5 {
			t.Errorf("grad_x[%d] = %f, want 5", i, got)
		}
	}
}

func TestNoGrad(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	tape.StartRecording()

	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{2}, backend)
	backend.Add(a.Raw(), b.Raw())

	numOpsBefore := tape.NumOps()
	if numOpsBefore == 0 {
		t.Error("operation before NoGrad should be recorded")
	}

	backend.NoGrad(func() {
		c, _ := tensor.FromSlice([]float32{5, 6}, tensor.Shape{2}, backend)
		d, _ := tensor.FromSlice([]float32{7, 8}, tensor.Shape{2}, backend)
		backend.Mul(c.Raw(), d.Raw())
	})

	if tape.NumOps() != numOpsBefore {
		t.Errorf("NoGrad should not record operations: before=%d, after=%d",
			numOpsBefore, tape.NumOps())
	}

	e, _ := tensor.FromSlice([]float32{9, 10}, tensor.Shape{2}, backend)
	f, _ := tensor.FromSlice([]float32{11, 12}, tensor.Shape{2}, backend)
	backend.Sub(e.Raw(), f.Raw())

	if tape.NumOps() != numOpsBefore+1 {
		t.Errorf("recording should resume after NoGrad: expected %d ops, got %d",
			numOpsBefore+1, tape.NumOps())
	}
}

func TestNoGrad_RestoresRecordingState(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	tape.StartRecording()
	backend.NoGrad(func() {
		if tape.IsRecording() {
			t.Error("tape should not be recording inside NoGrad")
		}
	})
	if !tape.IsRecording() {
		t.Error("tape should be recording after NoGrad")
	}

	tape.StopRecording()
	backend.NoGrad(func() {
		if tape.IsRecording() {
			t.Error("tape should not be recording inside NoGrad")
		}
	})
	if tape.IsRecording() {
		t.Error("tape should not be recording after NoGrad when it was off before")
	}
}

func TestNoGrad_Nested(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	tape.StartRecording()

	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{2}, backend)
	backend.Add(a.Raw(), b.Raw())

	numOpsInitial := tape.NumOps()

	backend.NoGrad(func() {
		c, _ := tensor.FromSlice([]float32{5, 6}, tensor.Shape{2}, backend)
		d, _ := tensor.FromSlice([]float32{7, 8}, tensor.Shape{2}, backend)
		backend.Mul(c.Raw(), d.Raw())

		backend.NoGrad(func() {
			e, _ := tensor.FromSlice([]float32{9, 10}, tensor.Shape{2}, backend)
			f, _ := tensor.FromSlice([]float32{11, 12}, tensor.Shape{2}, backend)
			backend.Sub(e.Raw(), f.Raw())
		})

		g, _ := tensor.FromSlice([]float32{13, 14}, tensor.Shape{2}, backend)
		h, _ := tensor.FromSlice([]float32{15, 16}, tensor.Shape{2}, backend)
		backend.Div(g.Raw(), h.Raw())
	})

	if tape.NumOps() != numOpsInitial {
		t.Errorf("nested NoGrad should not record operations: initial=%d, final=%d",
			numOpsInitial, tape.NumOps())
	}
	if !tape.IsRecording() {
		t.Error("recording should be restored after nested NoGrad")
	}
}

// Gradient accumulation must not mutate a gradient tensor that other map
// entries still reference. The decorator's pinning forces Add to allocate.
func TestBackward_SharedGradientNotCorrupted(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = (a + b) + (a + c): the output gradient (ones) seeds several
	// accumulation paths that share tensors.
	a, _ := tensor.FromSlice([]float32{1, 1}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{2, 2}, tensor.Shape{2}, backend)
	c, _ := tensor.FromSlice([]float32{3, 3}, tensor.Shape{2}, backend)

	left := backend.Add(a.Raw(), b.Raw())
	right := backend.Add(a.Raw(), c.Raw())
	result := tensor.New[float32](backend.Add(left, right), backend)

	gradients := autodiff.Backward(result, backend)

	if got := gradients[a.Raw()].AsFloat32()[0]; got != 2 {
		t.Errorf("grad_a = %f, want 2", got)
	}
	if got := gradients[b.Raw()].AsFloat32()[0]; got != 1 {
		t.Errorf("grad_b = %f, want 1", got)
	}
	if got := gradients[c.Raw()].AsFloat32()[0]; got != 1 {
		t.Errorf("grad_c = %f, want 1", got)
	}
}
