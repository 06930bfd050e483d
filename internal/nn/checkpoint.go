package nn

import (
	"fmt"
	"strings"

	"github.com/strand-ml/strand/internal/tensor"
)

// StateDictModule is implemented by modules that can export and restore
// their parameters as a flat name -> raw tensor map.
//
// StateDict returns references to the live parameter tensors, so a caller
// serializing them sees the current weights without copying.
// LoadStateDict copies data from the given map into the existing
// parameter tensors, validating names, shapes and dtypes.
//
// The checkpoint package persists these maps to disk; Sequential and the
// attention blocks compose nested modules' dictionaries with prefixed
// keys via CollectStateDict and LoadModuleStateDict.
type StateDictModule interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// CollectStateDict merges a module's state dictionary into dst, with
// every key prefixed. Composite modules use it to build their own
// StateDict:
//
//	sd := make(map[string]*tensor.RawTensor)
//	nn.CollectStateDict(sd, "w_qs.", m.wQs) // w_qs.weight, w_qs.bias
func CollectStateDict(dst map[string]*tensor.RawTensor, prefix string, m StateDictModule) {
	for name, raw := range m.StateDict() {
		dst[prefix+name] = raw
	}
}

// LoadModuleStateDict extracts the entries of src under prefix, strips
// the prefix, and loads them into the module. It is the inverse of
// CollectStateDict.
//
// Returns an error when src has no entries under the prefix, or when the
// module rejects the extracted sub-dictionary.
func LoadModuleStateDict(src map[string]*tensor.RawTensor, prefix string, m StateDictModule) error {
	sub := make(map[string]*tensor.RawTensor)
	for key, raw := range src {
		if strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
			sub[key[len(prefix):]] = raw
		}
	}
	if len(sub) == 0 {
		return fmt.Errorf("state dict has no entries under %q", prefix)
	}
	if err := m.LoadStateDict(sub); err != nil {
		return fmt.Errorf("%s: %w", strings.TrimSuffix(prefix, "."), err)
	}
	return nil
}
