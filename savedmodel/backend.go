package savedmodel

import "github.com/tensorbind/pure-tf/tf"

// Backend is the native execution surface the registry drives. It carries
// exactly the four operations session management needs; everything else
// (endpoint resolution, tensor marshaling) lives behind RunGraph. Tests
// substitute a fake; production code uses NativeBackend.
type Backend interface {
	// LoadGraph restores the MetaGraph selected by the comma-joined tag
	// set from a SavedModel directory and returns a native session id.
	LoadGraph(path, tagsCSV string) (int64, error)

	// RunGraph executes one session run: inputs pair positionally with
	// inputSpecs, results come back in outputSpecs order.
	RunGraph(session int64, inputs []tf.Value, inputSpecs, outputSpecs []tf.NodeSpec) ([]tf.Value, error)

	// ReleaseSession closes and deletes a native session.
	ReleaseSession(session int64) error

	// ActiveSessions returns the number of native sessions currently
	// loaded.
	ActiveSessions() int
}

// NativeBackend executes graphs through the process-wide libtensorflow
// binding. The tf environment must be initialized before the first
// LoadGraph.
type NativeBackend struct{}

func (NativeBackend) LoadGraph(path, tagsCSV string) (int64, error) {
	return tf.LoadGraph(path, tagsCSV)
}

func (NativeBackend) RunGraph(session int64, inputs []tf.Value, inputSpecs, outputSpecs []tf.NodeSpec) ([]tf.Value, error) {
	return tf.RunGraph(session, inputs, inputSpecs, outputSpecs)
}

func (NativeBackend) ReleaseSession(session int64) error {
	return tf.ReleaseSession(session)
}

func (NativeBackend) ActiveSessions() int {
	return tf.ActiveSessions()
}
