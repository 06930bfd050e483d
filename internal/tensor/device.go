package tensor

// Device identifies where a tensor's memory lives and which execution
// engine owns it. Placement is always chosen explicitly by constructing
// a backend and passing it to tensor constructors; there is no process-wide
// default device.
type Device int

// Supported devices. Both shipped backends (the portable one and the
// SIMD-accelerated one) execute on the host CPU.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}
