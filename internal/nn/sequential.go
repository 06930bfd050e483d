package nn

import (
	"fmt"
	"strings"

	"github.com/strand-ml/strand/internal/tensor"
)

// Sequential is a container module that chains single-input modules
// together: each module's output becomes the next module's input.
//
// Example:
//
//	model := nn.NewSequential[B](
//	    nn.NewLinear(512, 128, true, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(128, 10, true, backend),
//	)
//	output := model.Forward(input)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container from the given modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward applies all modules in order.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules, in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index. Panics if the index is
// out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic(fmt.Sprintf("Sequential.Module: index %d out of range [0, %d)", index, len(s.modules)))
	}
	return s.modules[index]
}

// SetTraining toggles training mode on every contained module that
// supports it (e.g. Dropout).
func (s *Sequential[B]) SetTraining(training bool) {
	for _, module := range s.modules {
		if tm, ok := any(module).(interface{ SetTraining(bool) }); ok {
			tm.SetTraining(training)
		}
	}
}

// StateDict returns the parameters of every stateful module, keyed
// "{i}.{name}" by module position to avoid collisions. Modules without
// state (activations, dropout) contribute nothing.
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, module := range s.modules {
		sdm, ok := any(module).(StateDictModule)
		if !ok {
			continue
		}
		CollectStateDict(stateDict, fmt.Sprintf("%d.", i), sdm)
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary with
// "{i}.{name}" keys.
func (s *Sequential[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, module := range s.modules {
		sdm, ok := any(module).(StateDictModule)
		if !ok {
			// Stateless module: make sure nothing was addressed to it.
			prefix := fmt.Sprintf("%d.", i)
			for key := range stateDict {
				if strings.HasPrefix(key, prefix) {
					return fmt.Errorf("module %d has no loadable state but state dict contains %q", i, key)
				}
			}
			continue
		}
		if err := LoadModuleStateDict(stateDict, fmt.Sprintf("%d.", i), sdm); err != nil {
			return fmt.Errorf("failed to load module %d: %w", i, err)
		}
	}
	return nil
}
