package optim

import (
	"fmt"
	"math"

	"github.com/strand-ml/strand/internal/nn"
	"github.com/strand-ml/strand/internal/tensor"
)

// Adam implements the Adam optimizer (Kingma & Ba, 2014).
//
// Adam keeps exponential moving averages of gradients and squared
// gradients, corrects their initialization bias, and scales each update by
// the inverse root of the second moment:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// The moment updates run as flat buffer loops: one pass per parameter,
// nothing recorded on any tape.
//
// Example:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
//	    LR: 0.001,
//	}, backend)
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float32
	beta1   float32
	beta2   float32
	eps     float32
	t       int // timestep for bias correction
	m       map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	v       map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	backend B
}

// AdamConfig holds configuration for the Adam optimizer.
//
// Zero values take defaults: LR 0.001, Betas {0.9, 0.999}, Eps 1e-8.
type AdamConfig struct {
	LR    float32    // learning rate
	Betas [2]float32 // moving-average coefficients
	Eps   float32    // denominator stabilizer
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		t:       0,
		m:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		v:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend: backend,
	}
}

// Step performs a single optimization step.
//
// The timestep advances once per call, so bias correction reflects the
// number of steps taken, not the number of parameters updated. Parameters
// absent from the gradient map are skipped.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		m, exists := a.m[param]
		if !exists {
			m = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			a.m[param] = m
		}

		v, exists := a.v[param]
		if !exists {
			v = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			a.v[param] = v
		}

		a.updateParameter(param, grad, m, v, biasCorrection1, biasCorrection2)
	}
}

// updateParameter applies the Adam update for one parameter, refreshing
// its moment buffers in place.
func (a *Adam[B]) updateParameter(
	param *nn.Parameter[B],
	grad *tensor.RawTensor,
	m, v *tensor.Tensor[float32, B],
	biasCorrection1, biasCorrection2 float32,
) {
	gradData := grad.AsFloat32()
	mData := m.Data()
	vData := v.Data()
	paramData := param.Tensor().Data()

	for i := range paramData {
		g := gradData[i]

		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2

		paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate, for scheduling.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the number of steps taken.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}

// StateDict returns the optimizer state for checkpointing: first and
// second moment buffers under "m.{param_index}" / "v.{param_index}" and
// the timestep under "step" as a single-element tensor. Restoring the
// timestep matters: without it bias correction restarts and the first
// resumed updates overshoot.
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)

	for i, param := range a.params {
		if m, exists := a.m[param]; exists {
			stateDict[fmt.Sprintf("m.%d", i)] = m.Raw()
		}
		if v, exists := a.v[param]; exists {
			stateDict[fmt.Sprintf("v.%d", i)] = v.Raw()
		}
	}

	step := tensor.Full[float32](tensor.Shape{1}, float32(a.t), a.backend)
	stateDict["step"] = step.Raw()

	return stateDict
}

// LoadStateDict restores moment buffers and the timestep saved by
// StateDict, copying the data into buffers the optimizer owns.
//
// Missing moment entries leave the buffer to lazy initialization; a shape
// mismatch is an error.
func (a *Adam[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	a.m = make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B])
	a.v = make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B])

	for i, param := range a.params {
		if raw, exists := stateDict[fmt.Sprintf("m.%d", i)]; exists {
			if !raw.Shape().Equal(param.Tensor().Shape()) {
				return fmt.Errorf("first moment shape mismatch for parameter %d (%s): expected %v, got %v",
					i, param.Name(), param.Tensor().Shape(), raw.Shape())
			}
			m := tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			copy(m.Data(), raw.AsFloat32())
			a.m[param] = m
		}
		if raw, exists := stateDict[fmt.Sprintf("v.%d", i)]; exists {
			if !raw.Shape().Equal(param.Tensor().Shape()) {
				return fmt.Errorf("second moment shape mismatch for parameter %d (%s): expected %v, got %v",
					i, param.Name(), param.Tensor().Shape(), raw.Shape())
			}
			v := tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			copy(v.Data(), raw.AsFloat32())
			a.v[param] = v
		}
	}

	if raw, exists := stateDict["step"]; exists {
		if raw.Shape().NumElements() != 1 {
			return fmt.Errorf("step entry must hold a single element, got shape %v", raw.Shape())
		}
		a.t = int(raw.AsFloat32()[0])
	}

	return nil
}
