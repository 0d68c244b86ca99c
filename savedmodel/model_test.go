package savedmodel

import (
	"errors"
	"strings"
	"testing"

	"github.com/tensorbind/pure-tf/tf"
)

// twoInputGraph declares a signature with two inputs and two outputs, with
// node names exercising every suffix case the accessors normalize.
func twoInputGraph() testMetaGraph {
	return testMetaGraph{
		tags: []string{"serve"},
		signatures: map[string]testSignature{
			"serving_default": {
				inputs: map[string]testTensor{
					"a": {name: "a:0", dtype: tf.DataTypeFloat, dims: []int64{-1, 2}},
					"b": {name: "embedding/b:1", dtype: tf.DataTypeInt64, dims: []int64{-1}},
				},
				outputs: map[string]testTensor{
					"probabilities": {name: "softmax:0", dtype: tf.DataTypeFloat, dims: []int64{-1, 4}},
					"classes":       {name: "argmax", dtype: tf.DataTypeInt64, dims: []int64{-1}},
				},
			},
		},
	}
}

func loadTestModel(t *testing.T, backend *fakeBackend, graphs ...testMetaGraph) *Model {
	t.Helper()
	registry := NewRegistry(backend)
	t.Cleanup(func() { registry.Close() })

	model, err := registry.Load(writeModelDir(t, graphs...))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return model
}

func floatTensor(t *testing.T, shape tf.Shape, data []float32) tf.Value {
	t.Helper()
	tensor, err := tf.NewTensor(shape, data)
	if err != nil {
		t.Fatalf("failed to build tensor: %v", err)
	}
	return tensor
}

func TestModelAccessorsNormalizeNames(t *testing.T) {
	model := loadTestModel(t, newFakeBackend(), twoInputGraph())

	inputs := model.Inputs()
	if len(inputs) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(inputs))
	}
	// Declared order is sorted signature keys: a before b.
	if inputs[0].Name != "a" {
		t.Fatalf("trailing :0 must be stripped: got %q", inputs[0].Name)
	}
	if inputs[1].Name != "embedding/b:1" {
		t.Fatalf(":1 suffix must stay: got %q", inputs[1].Name)
	}

	outputs := model.Outputs()
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
	// classes sorts before probabilities.
	if outputs[0].Name != "argmax" {
		t.Fatalf("suffix-free name must stay: got %q", outputs[0].Name)
	}
	if outputs[1].Name != "softmax" {
		t.Fatalf("trailing :0 must be stripped: got %q", outputs[1].Name)
	}
}

func TestModelPredictSingleTensor(t *testing.T) {
	backend := newFakeBackend()
	want := floatTensor(t, tf.NewShape(1, 1), []float32{0.5})
	backend.runResult = func(outputSpecs []tf.NodeSpec) []tf.Value {
		return []tf.Value{want}
	}
	model := loadTestModel(t, backend, servingGraph())

	if model.Inputs()[0].Name != "x" {
		t.Fatalf("unexpected input name: %q", model.Inputs()[0].Name)
	}

	got, err := model.Predict(floatTensor(t, tf.NewShape(1, 3), []float32{1, 2, 3}))
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if got != want {
		t.Fatalf("predict must return the lone output unwrapped")
	}

	// The native call sees the raw signature node names, suffixes intact.
	if backend.lastISpecs[0].Name != "x:0" || backend.lastISpecs[0].DType != tf.DataTypeFloat {
		t.Fatalf("unexpected input spec: %+v", backend.lastISpecs[0])
	}
	if backend.lastOSpecs[0].Name != "y:0" {
		t.Fatalf("unexpected output spec: %+v", backend.lastOSpecs[0])
	}
}

func TestModelPredictRejectsMultiInputSignature(t *testing.T) {
	backend := newFakeBackend()
	model := loadTestModel(t, backend, twoInputGraph())

	_, err := model.Predict(floatTensor(t, tf.NewShape(1, 2), []float32{1, 2}))
	if !errors.Is(err, ErrInputMismatch) {
		t.Fatalf("expected ErrInputMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "declares 2 inputs") {
		t.Fatalf("error %q does not name the declared input count", err)
	}
	if backend.runs() != 0 {
		t.Fatalf("rejected predict must not reach the backend; got %d runs", backend.runs())
	}
}

func TestModelPredictNilInput(t *testing.T) {
	backend := newFakeBackend()
	model := loadTestModel(t, backend, servingGraph())

	if _, err := model.Predict(nil); !errors.Is(err, ErrInputMismatch) {
		t.Fatalf("expected ErrInputMismatch, got %v", err)
	}
	if backend.runs() != 0 {
		t.Fatalf("nil input must not reach the backend; got %d runs", backend.runs())
	}
}

func TestModelPredictOutputCountViolation(t *testing.T) {
	backend := newFakeBackend()
	backend.runResult = func([]tf.NodeSpec) []tf.Value { return nil }
	model := loadTestModel(t, backend, servingGraph())

	_, err := model.Predict(floatTensor(t, tf.NewShape(1, 3), []float32{1, 2, 3}))
	if !errors.Is(err, ErrOutputCountMismatch) {
		t.Fatalf("expected ErrOutputCountMismatch, got %v", err)
	}
}

func TestModelRunPositional(t *testing.T) {
	backend := newFakeBackend()
	model := loadTestModel(t, backend, twoInputGraph())

	a := floatTensor(t, tf.NewShape(1, 2), []float32{1, 2})
	b, err := tf.NewTensor(tf.NewShape(1), []int64{7})
	if err != nil {
		t.Fatal(err)
	}

	results, err := model.Run(a, b)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(results))
	}

	if backend.lastInputs[0] != tf.Value(a) || backend.lastInputs[1] != tf.Value(b) {
		t.Fatal("positional inputs must reach the backend in declared order")
	}
	if backend.lastISpecs[0].Name != "a:0" || backend.lastISpecs[1].Name != "embedding/b:1" {
		t.Fatalf("unexpected input specs: %+v", backend.lastISpecs)
	}
	if backend.lastOSpecs[0].Name != "argmax" || backend.lastOSpecs[1].Name != "softmax:0" {
		t.Fatalf("unexpected output specs: %+v", backend.lastOSpecs)
	}
}

func TestModelRunCountMismatch(t *testing.T) {
	backend := newFakeBackend()
	model := loadTestModel(t, backend, twoInputGraph())

	_, err := model.Run(floatTensor(t, tf.NewShape(1, 2), []float32{1, 2}))
	if !errors.Is(err, ErrInputMismatch) {
		t.Fatalf("expected ErrInputMismatch, got %v", err)
	}
	if backend.runs() != 0 {
		t.Fatalf("count mismatch must not reach the backend; got %d runs", backend.runs())
	}
}

func TestModelRunNamed(t *testing.T) {
	backend := newFakeBackend()
	model := loadTestModel(t, backend, twoInputGraph())

	a := floatTensor(t, tf.NewShape(1, 2), []float32{1, 2})
	b, err := tf.NewTensor(tf.NewShape(1), []int64{7})
	if err != nil {
		t.Fatal(err)
	}

	// Keys are signature keys, not node names; order of the map is
	// irrelevant because tensors are reordered into declared order.
	results, err := model.RunNamed(map[string]tf.Value{"b": b, "a": a})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if backend.lastInputs[0] != tf.Value(a) || backend.lastInputs[1] != tf.Value(b) {
		t.Fatal("named inputs must be reordered into declared order")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 named outputs, got %d", len(results))
	}
	if _, ok := results["classes"]; !ok {
		t.Fatalf("missing output key 'classes': %v", results)
	}
	if _, ok := results["probabilities"]; !ok {
		t.Fatalf("missing output key 'probabilities': %v", results)
	}
}

func TestModelRunNamedMismatch(t *testing.T) {
	backend := newFakeBackend()
	model := loadTestModel(t, backend, twoInputGraph())

	a := floatTensor(t, tf.NewShape(1, 2), []float32{1, 2})

	tests := []struct {
		name   string
		inputs map[string]tf.Value
	}{
		{name: "missing input", inputs: map[string]tf.Value{"a": a}},
		{name: "extra input", inputs: map[string]tf.Value{"a": a, "b": a, "c": a}},
		{name: "wrong name", inputs: map[string]tf.Value{"a": a, "z": a}},
		{name: "empty map", inputs: map[string]tf.Value{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := model.RunNamed(tc.inputs)
			if !errors.Is(err, ErrInputMismatch) {
				t.Fatalf("expected ErrInputMismatch, got %v", err)
			}
			if !strings.Contains(err.Error(), "a b") {
				t.Fatalf("error %q does not name the declared input set", err)
			}
		})
	}

	if backend.runs() != 0 {
		t.Fatalf("mismatched names must never reach the backend; got %d runs", backend.runs())
	}
}

func TestModelRunNamedOutputCountViolation(t *testing.T) {
	backend := newFakeBackend()
	backend.runResult = func(outputSpecs []tf.NodeSpec) []tf.Value {
		tensor, _ := tf.NewTensor(tf.NewShape(1), []float32{0})
		return []tf.Value{tensor} // one instead of two
	}
	model := loadTestModel(t, backend, twoInputGraph())

	a := floatTensor(t, tf.NewShape(1, 2), []float32{1, 2})
	b, err := tf.NewTensor(tf.NewShape(1), []int64{7})
	if err != nil {
		t.Fatal(err)
	}

	_, err = model.RunNamed(map[string]tf.Value{"a": a, "b": b})
	if !errors.Is(err, ErrOutputCountMismatch) {
		t.Fatalf("expected ErrOutputCountMismatch, got %v", err)
	}
}

func TestModelExecuteNotImplemented(t *testing.T) {
	model := loadTestModel(t, newFakeBackend(), servingGraph())

	_, err := model.Execute(nil, []string{"y"})
	if !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestModelDisposeLifecycle(t *testing.T) {
	backend := newFakeBackend()
	registry := NewRegistry(backend)
	defer registry.Close()

	dir := writeModelDir(t, servingGraph())
	first, err := registry.Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	second, err := registry.Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if err := first.Dispose(); err != nil {
		t.Fatalf("dispose failed: %v", err)
	}
	if backend.ActiveSessions() != 1 {
		t.Fatal("shared session must survive while another handle uses it")
	}

	// The surviving handle keeps working.
	if _, err := second.Predict(floatTensor(t, tf.NewShape(1, 3), []float32{1, 2, 3})); err != nil {
		t.Fatalf("surviving handle predict failed: %v", err)
	}

	// The disposed one fails fast on every path.
	input := floatTensor(t, tf.NewShape(1, 3), []float32{1, 2, 3})
	if _, err := first.Predict(input); !errors.Is(err, ErrModelDisposed) {
		t.Fatalf("expected ErrModelDisposed from Predict, got %v", err)
	}
	if _, err := first.Run(input); !errors.Is(err, ErrModelDisposed) {
		t.Fatalf("expected ErrModelDisposed from Run, got %v", err)
	}
	if _, err := first.RunNamed(map[string]tf.Value{"x": input}); !errors.Is(err, ErrModelDisposed) {
		t.Fatalf("expected ErrModelDisposed from RunNamed, got %v", err)
	}

	if err := first.Dispose(); !errors.Is(err, ErrAlreadyDisposed) {
		t.Fatalf("expected ErrAlreadyDisposed, got %v", err)
	}

	if err := second.Dispose(); err != nil {
		t.Fatalf("dispose failed: %v", err)
	}
	if backend.ActiveSessions() != 0 {
		t.Fatal("last dispose must release the native session")
	}
}

func TestModelLoadAfterDisposeCreatesFreshSession(t *testing.T) {
	backend := newFakeBackend()
	registry := NewRegistry(backend)
	defer registry.Close()

	dir := writeModelDir(t, servingGraph())
	first, err := registry.Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := first.Dispose(); err != nil {
		t.Fatalf("dispose failed: %v", err)
	}

	second, err := registry.Load(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	defer second.Dispose()

	if backend.loads() != 2 {
		t.Fatalf("expected a fresh native load after full dispose, got %d loads", backend.loads())
	}
	if registry.ActiveSessions() != 1 {
		t.Fatalf("expected 1 active session, got %d", registry.ActiveSessions())
	}
}
