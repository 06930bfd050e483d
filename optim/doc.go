// Copyright 2025 Strand ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//
// # Basic Usage
//
//	import (
//	    "github.com/strand-ml/strand/autodiff"
//	    "github.com/strand-ml/strand/backend/cpu"
//	    "github.com/strand-ml/strand/nn"
//	    "github.com/strand-ml/strand/optim"
//	)
//
//	func main() {
//	    backend := autodiff.New(cpu.New())
//	    model := nn.NewLinear(512, 64, true, backend)
//	    criterion := nn.NewMSELoss(backend)
//
//	    optimizer := optim.NewAdam(
//	        model.Parameters(),
//	        optim.AdamConfig{
//	            LR:    0.001,
//	            Betas: [2]float32{0.9, 0.999},
//	        },
//	        backend,
//	    )
//
//	    // Training loop
//	    for epoch := 0; epoch < 10; epoch++ {
//	        backend.Tape().Clear()
//	        backend.Tape().StartRecording()
//	        loss := criterion.Forward(model.Forward(x), y)
//
//	        grads := autodiff.Backward(loss, backend)
//	        backend.NoGrad(func() {
//	            optimizer.Step(grads)
//	        })
//	        optimizer.ZeroGrad()
//	    }
//	}
//
// # Optimizers
//
// SGD (Stochastic Gradient Descent):
//
//	v = momentum*v - lr*grad
//	param += v
//
// With Momentum 0 the velocity buffer is skipped entirely and the update
// is the plain param -= lr*grad.
//
// Adam (Adaptive Moment Estimation):
//
//	m = beta1*m + (1-beta1)*grad
//	v = beta2*v + (1-beta2)*grad^2
//	param -= lr * m_hat / (sqrt(v_hat) + eps)
//
// where m_hat and v_hat are bias-corrected first and second moments.
//
// # Checkpointing
//
// Both optimizers expose StateDict and LoadStateDict, so a training run
// can be persisted and resumed through the checkpoint package with the
// momentum and moment buffers intact.
package optim
