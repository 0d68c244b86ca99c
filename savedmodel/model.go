package savedmodel

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tensorbind/pure-tf/tf"
)

// Model binds one registry record and one signature. Handles are cheap:
// several can share a native session, and the session survives until the
// last of them is disposed.
//
// Declared order is the sorted order of the signature's input (or output)
// keys; every positional pairing in this package uses it.
type Model struct {
	registry  *Registry
	recordID  int64
	session   int64
	path      string
	tags      []string
	signature string
	sig       SignatureDef

	mu       sync.Mutex
	disposed bool

	// The output table is fixed for the handle's lifetime, so it is
	// computed once. Input descriptions are rebuilt per call.
	outputsOnce sync.Once
	outputNames []string
	outputSpecs []tf.NodeSpec
}

// Inputs describes the signature's inputs in declared order, with node
// names normalized: a trailing literal ":0" is stripped, any other suffix
// stays.
func (m *Model) Inputs() []TensorInfo {
	return describeTensors(m.sig.Inputs)
}

// Outputs describes the signature's outputs in declared order, normalized
// like Inputs.
func (m *Model) Outputs() []TensorInfo {
	return describeTensors(m.sig.Outputs)
}

// Predict runs the signature with a single tensor. The signature must
// declare exactly one input and one output; the lone output is returned
// unwrapped. Signatures with more endpoints need Run or RunNamed.
func (m *Model) Predict(input tf.Value) (tf.Value, error) {
	if err := m.checkDisposed(); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, fmt.Errorf("%w: nil input tensor", ErrInputMismatch)
	}

	inputNames, inputSpecs := m.inputTable()
	if len(inputSpecs) != 1 {
		return nil, fmt.Errorf("%w: signature %q declares %d inputs (%s); Predict takes exactly one tensor",
			ErrInputMismatch, m.signature, len(inputSpecs), strings.Join(inputNames, ", "))
	}
	outputNames, outputSpecs := m.outputTable()
	if len(outputSpecs) != 1 {
		return nil, fmt.Errorf("%w: signature %q declares %d outputs (%s); Predict returns exactly one tensor",
			ErrOutputCountMismatch, m.signature, len(outputSpecs), strings.Join(outputNames, ", "))
	}

	results, err := m.registry.backend.RunGraph(m.session, []tf.Value{input}, inputSpecs, outputSpecs)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("%w: session run returned %d tensors, expected 1", ErrOutputCountMismatch, len(results))
	}
	return results[0], nil
}

// Run runs the signature with tensors paired positionally against the
// declared input order. All outputs are returned in declared order.
func (m *Model) Run(inputs ...tf.Value) ([]tf.Value, error) {
	if err := m.checkDisposed(); err != nil {
		return nil, err
	}

	inputNames, inputSpecs := m.inputTable()
	if len(inputs) != len(inputSpecs) {
		return nil, fmt.Errorf("%w: got %d tensors for %d declared inputs (%s)",
			ErrInputMismatch, len(inputs), len(inputSpecs), strings.Join(inputNames, ", "))
	}

	_, outputSpecs := m.outputTable()
	return m.registry.backend.RunGraph(m.session, inputs, inputSpecs, outputSpecs)
}

// RunNamed runs the signature with tensors keyed by signature input name.
// The provided key set must equal the declared set exactly; tensors are
// reordered into declared order before the native call. Outputs come back
// keyed by signature output name.
func (m *Model) RunNamed(inputs map[string]tf.Value) (map[string]tf.Value, error) {
	if err := m.checkDisposed(); err != nil {
		return nil, err
	}

	declared, inputSpecs := m.inputTable()
	if err := matchInputNames(declared, inputs); err != nil {
		return nil, err
	}

	ordered := make([]tf.Value, len(declared))
	for i, key := range declared {
		ordered[i] = inputs[key]
	}

	outputNames, outputSpecs := m.outputTable()
	results, err := m.registry.backend.RunGraph(m.session, ordered, inputSpecs, outputSpecs)
	if err != nil {
		return nil, err
	}
	if len(results) != len(outputNames) {
		return nil, fmt.Errorf("%w: session run returned %d tensors for %d declared outputs",
			ErrOutputCountMismatch, len(results), len(outputNames))
	}

	named := make(map[string]tf.Value, len(results))
	for i, key := range outputNames {
		named[key] = results[i]
	}
	return named, nil
}

// Execute is part of the shared inference contract but is not supported
// for SavedModel handles; it always fails with ErrNotImplemented.
func (m *Model) Execute(inputs map[string]tf.Value, outputNames []string) ([]tf.Value, error) {
	return nil, fmt.Errorf("%w: Execute on saved model handles", ErrNotImplemented)
}

// Dispose unbinds the handle from its session. The native session is
// released only when no other handle shares it. A second Dispose fails
// with ErrAlreadyDisposed.
func (m *Model) Dispose() error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return ErrAlreadyDisposed
	}
	m.disposed = true
	m.mu.Unlock()

	return m.registry.release(m.recordID)
}

func (m *Model) checkDisposed() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return ErrModelDisposed
	}
	return nil
}

func (m *Model) inputTable() ([]string, []tf.NodeSpec) {
	keys := sortedKeys(m.sig.Inputs)
	specs := make([]tf.NodeSpec, len(keys))
	for i, key := range keys {
		info := m.sig.Inputs[key]
		specs[i] = tf.NodeSpec{Name: info.Name, DType: info.DType}
	}
	return keys, specs
}

func (m *Model) outputTable() ([]string, []tf.NodeSpec) {
	m.outputsOnce.Do(func() {
		keys := sortedKeys(m.sig.Outputs)
		specs := make([]tf.NodeSpec, len(keys))
		for i, key := range keys {
			info := m.sig.Outputs[key]
			specs[i] = tf.NodeSpec{Name: info.Name, DType: info.DType}
		}
		m.outputNames = keys
		m.outputSpecs = specs
	})
	return m.outputNames, m.outputSpecs
}

func describeTensors(entries map[string]TensorInfo) []TensorInfo {
	keys := sortedKeys(entries)
	out := make([]TensorInfo, 0, len(keys))
	for _, key := range keys {
		info := entries[key]
		info.Name = trimOutputSuffix(info.Name)
		out = append(out, info)
	}
	return out
}

// trimOutputSuffix strips a trailing literal ":0" from a node reference.
// Only the default output index is implicit; ":1" and friends stay
// visible because dropping them would change which tensor the name means.
func trimOutputSuffix(name string) string {
	return strings.TrimSuffix(name, ":0")
}

func sortedKeys(entries map[string]TensorInfo) []string {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func matchInputNames(declared []string, provided map[string]tf.Value) error {
	providedKeys := make([]string, 0, len(provided))
	for key := range provided {
		providedKeys = append(providedKeys, key)
	}
	sort.Strings(providedKeys)

	match := len(providedKeys) == len(declared)
	if match {
		for i := range declared {
			if providedKeys[i] != declared[i] {
				match = false
				break
			}
		}
	}
	if !match {
		return fmt.Errorf("%w: signature declares inputs [%s], got [%s]",
			ErrInputMismatch, strings.Join(declared, " "), strings.Join(providedKeys, " "))
	}
	return nil
}
