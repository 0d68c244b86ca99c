package savedmodel

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tensorbind/pure-tf/tf"
)

// Test descriptors are assembled with protowire so the decoder is exercised
// against real wire bytes rather than fixture files checked in blind.

type testTensor struct {
	name        string
	dtype       tf.DataType
	dims        []int64
	unknownRank bool
}

type testSignature struct {
	methodName string
	inputs     map[string]testTensor
	outputs    map[string]testTensor
}

type testMetaGraph struct {
	tags       []string
	tfVersion  string
	gitVersion string
	signatures map[string]testSignature
}

func encodeTensorInfo(t testTensor) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, t.name)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.dtype))

	var shape []byte
	for _, dim := range t.dims {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(dim))
		shape = protowire.AppendTag(shape, 2, protowire.BytesType)
		shape = protowire.AppendBytes(shape, entry)
	}
	if t.unknownRank {
		shape = protowire.AppendTag(shape, 3, protowire.VarintType)
		shape = protowire.AppendVarint(shape, 1)
	}
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, shape)
	return b
}

func encodeTensorMap(field protowire.Number, tensors map[string]testTensor) []byte {
	keys := make([]string, 0, len(tensors))
	for key := range tensors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b []byte
	for _, key := range keys {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendBytes(entry, encodeTensorInfo(tensors[key]))
		b = protowire.AppendTag(b, field, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func encodeSignature(sig testSignature) []byte {
	var b []byte
	b = append(b, encodeTensorMap(1, sig.inputs)...)
	b = append(b, encodeTensorMap(2, sig.outputs)...)
	if sig.methodName != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, sig.methodName)
	}
	return b
}

func encodeMetaGraph(mg testMetaGraph) []byte {
	var info []byte
	for _, tag := range mg.tags {
		info = protowire.AppendTag(info, 4, protowire.BytesType)
		info = protowire.AppendString(info, tag)
	}
	if mg.tfVersion != "" {
		info = protowire.AppendTag(info, 5, protowire.BytesType)
		info = protowire.AppendString(info, mg.tfVersion)
	}
	if mg.gitVersion != "" {
		info = protowire.AppendTag(info, 6, protowire.BytesType)
		info = protowire.AppendString(info, mg.gitVersion)
	}

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, info)

	keys := make([]string, 0, len(mg.signatures))
	for key := range mg.signatures {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendBytes(entry, encodeSignature(mg.signatures[key]))
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func encodeSavedModel(graphs ...testMetaGraph) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	for _, mg := range graphs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeMetaGraph(mg))
	}
	return b
}

// writeModelDir materializes a SavedModel directory containing only the
// descriptor and returns its path.
func writeModelDir(t *testing.T, graphs ...testMetaGraph) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DescriptorFileName), encodeSavedModel(graphs...), 0o644); err != nil {
		t.Fatalf("failed to write descriptor: %v", err)
	}
	return dir
}

// servingGraph is the canonical single-signature fixture: one MetaGraph
// tagged "serve" with serving_default mapping x:0 -> y:0.
func servingGraph() testMetaGraph {
	return testMetaGraph{
		tags:       []string{"serve"},
		tfVersion:  "2.15.0",
		gitVersion: "v2.15.0-rc1-8-g6887368d6d4",
		signatures: map[string]testSignature{
			"serving_default": {
				methodName: "tensorflow/serving/predict",
				inputs: map[string]testTensor{
					"x": {name: "x:0", dtype: tf.DataTypeFloat, dims: []int64{-1, 3}},
				},
				outputs: map[string]testTensor{
					"y": {name: "y:0", dtype: tf.DataTypeFloat, dims: []int64{-1, 1}},
				},
			},
		},
	}
}

// fakeBackend implements Backend in memory, recording every call so tests
// can assert on what crossed the native boundary.
type fakeBackend struct {
	mu          sync.Mutex
	nextSession int64
	sessions    map[int64]string // session id -> "path|tagsCSV"
	loadCalls   int
	runCalls    int
	lastInputs  []tf.Value
	lastISpecs  []tf.NodeSpec
	lastOSpecs  []tf.NodeSpec

	loadErr error
	runErr  error
	relErr  error

	// runResult overrides the default echo behavior when set.
	runResult func(outputSpecs []tf.NodeSpec) []tf.Value
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nextSession: 100, sessions: make(map[int64]string)}
}

func (f *fakeBackend) LoadGraph(path, tagsCSV string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	if f.loadErr != nil {
		return 0, f.loadErr
	}
	id := f.nextSession
	f.nextSession++
	f.sessions[id] = path + "|" + tagsCSV
	return id, nil
}

func (f *fakeBackend) RunGraph(session int64, inputs []tf.Value, inputSpecs, outputSpecs []tf.NodeSpec) ([]tf.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runCalls++
	f.lastInputs = inputs
	f.lastISpecs = inputSpecs
	f.lastOSpecs = outputSpecs
	if f.runErr != nil {
		return nil, f.runErr
	}
	if _, ok := f.sessions[session]; !ok {
		return nil, fmt.Errorf("fake backend: run on unknown session %d", session)
	}
	if f.runResult != nil {
		return f.runResult(outputSpecs), nil
	}
	results := make([]tf.Value, len(outputSpecs))
	for i := range outputSpecs {
		tensor, err := tf.NewTensor(tf.NewShape(1), []float32{float32(i)})
		if err != nil {
			return nil, err
		}
		results[i] = tensor
	}
	return results, nil
}

func (f *fakeBackend) ReleaseSession(session int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.relErr != nil {
		return f.relErr
	}
	if _, ok := f.sessions[session]; !ok {
		return fmt.Errorf("fake backend: release of unknown session %d", session)
	}
	delete(f.sessions, session)
	return nil
}

func (f *fakeBackend) ActiveSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeBackend) loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadCalls
}

func (f *fakeBackend) runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runCalls
}
