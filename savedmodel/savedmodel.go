// Package savedmodel loads TensorFlow SavedModel directories and runs
// their signatures through the process-wide TensorFlow runtime.
package savedmodel

const (
	// DefaultTag is the serving tag TensorFlow exporters attach to the
	// MetaGraph meant for inference.
	DefaultTag = "serve"

	// DefaultSignature is the signature key exporters assign when none
	// is given explicitly.
	DefaultSignature = "serving_default"
)

// DefaultRegistry backs the package-level Load and ActiveSessions. Embedders
// that need isolated session pools or custom logging construct their own
// Registry instead.
var DefaultRegistry = NewRegistry(NativeBackend{})

// Load opens the SavedModel under dir through DefaultRegistry. Loads of the
// same directory with the same tag set share one native session; see
// Registry.Load for the full contract.
func Load(dir string, opts ...LoadOption) (*Model, error) {
	return DefaultRegistry.Load(dir, opts...)
}

// ActiveSessions reports how many native sessions are currently alive.
func ActiveSessions() int {
	return DefaultRegistry.ActiveSessions()
}
