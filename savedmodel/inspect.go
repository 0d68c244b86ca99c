package savedmodel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tensorbind/pure-tf/internal/tagset"
	"github.com/tensorbind/pure-tf/tf"
)

// initOpSignatureKey is the reserved signature key SavedModel exporters use
// to record the initialization op. It is bookkeeping, not a callable
// signature, and is always excluded from inspection results.
const initOpSignatureKey = "__saved_model_init_op"

// TensorInfo describes one signature tensor.
type TensorInfo struct {
	// Name is the graph node reference exactly as recorded in the
	// descriptor, output-index suffix included (for example "x:0").
	// Model accessors normalize trailing ":0" suffixes; inspection
	// does not.
	Name string

	// DType is the native element type the signature declares.
	DType tf.DataType

	// Mapped is the wrapper-level type tensors for this endpoint cross
	// the session-run boundary as.
	Mapped DType

	// Shape holds the declared dimension sizes, -1 for unknown
	// dimensions. Nil when the signature declares unknown rank.
	Shape tf.Shape
}

// SignatureDef describes one callable signature of a MetaGraph.
type SignatureDef struct {
	MethodName string
	Inputs     map[string]TensorInfo
	Outputs    map[string]TensorInfo
}

// MetaGraph describes one MetaGraph of a SavedModel: its tag set, the
// TensorFlow build that produced it, and its callable signatures.
type MetaGraph struct {
	Tags              []string
	TensorFlowVersion string
	GitVersion        string
	Signatures        map[string]SignatureDef
}

// Inspect reads a SavedModel directory's descriptor and returns its
// MetaGraphs in descriptor order. Signature tensors carrying a dtype with
// no wrapper representation fail the whole inspection with
// ErrUnsupportedDType; a descriptor that cannot be decoded fails with
// ErrCorruptDescriptor.
func Inspect(dir string) ([]MetaGraph, error) {
	proto, err := readSavedModel(dir)
	if err != nil {
		return nil, err
	}

	graphs := make([]MetaGraph, 0, len(proto.metaGraphs))
	for i, mg := range proto.metaGraphs {
		graph := MetaGraph{
			Tags:              append([]string(nil), mg.metaInfo.tags...),
			TensorFlowVersion: mg.metaInfo.tensorflowVersion,
			GitVersion:        mg.metaInfo.tensorflowGitVersion,
			Signatures:        make(map[string]SignatureDef, len(mg.signatures)),
		}

		for key, sig := range mg.signatures {
			if key == initOpSignatureKey {
				continue
			}
			converted, err := convertSignature(sig)
			if err != nil {
				return nil, fmt.Errorf("meta graph %d signature %q: %w", i, key, err)
			}
			graph.Signatures[key] = converted
		}

		graphs = append(graphs, graph)
	}

	return graphs, nil
}

func convertSignature(sig signatureDefProto) (SignatureDef, error) {
	out := SignatureDef{
		MethodName: sig.methodName,
		Inputs:     make(map[string]TensorInfo, len(sig.inputs)),
		Outputs:    make(map[string]TensorInfo, len(sig.outputs)),
	}

	for key, info := range sig.inputs {
		converted, err := convertTensorInfo(info)
		if err != nil {
			return out, fmt.Errorf("input %q: %w", key, err)
		}
		out.Inputs[key] = converted
	}
	for key, info := range sig.outputs {
		converted, err := convertTensorInfo(info)
		if err != nil {
			return out, fmt.Errorf("output %q: %w", key, err)
		}
		out.Outputs[key] = converted
	}

	return out, nil
}

func convertTensorInfo(info tensorInfoProto) (TensorInfo, error) {
	native := tf.DataType(info.dtype)
	mapped, err := MapDType(native.String())
	if err != nil {
		return TensorInfo{}, err
	}

	var shape tf.Shape
	if !info.unknownRank {
		shape = make(tf.Shape, len(info.dims))
		copy(shape, info.dims)
	}

	return TensorInfo{
		Name:   info.name,
		DType:  native,
		Mapped: mapped,
		Shape:  shape,
	}, nil
}

// findSignature selects the first MetaGraph whose tag set equals the
// requested set, then looks up the signature key within it. Selection is
// first-match in descriptor order.
func findSignature(graphs []MetaGraph, tags []string, signature string) (SignatureDef, error) {
	for _, graph := range graphs {
		if !tagset.Equal(graph.Tags, tags) {
			continue
		}

		sig, ok := graph.Signatures[signature]
		if !ok {
			keys := make([]string, 0, len(graph.Signatures))
			for key := range graph.Signatures {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			return SignatureDef{}, fmt.Errorf("%w: %q (available signatures: %s)", ErrSignatureNotFound, signature, strings.Join(keys, ", "))
		}
		return sig, nil
	}

	available := make([]string, 0, len(graphs))
	for _, graph := range graphs {
		available = append(available, tagset.Join(graph.Tags))
	}
	return SignatureDef{}, fmt.Errorf("%w: requested {%s}, descriptor has tag sets {%s}", ErrTagsNotFound, tagset.Join(tags), strings.Join(available, "} {"))
}
