package savedmodel

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Minimal decoder for the SavedModel descriptor wire format. Only the
// fields signature inspection needs are decoded; everything else in the
// descriptor (graph defs, collections, object graphs) is skipped by wire
// type without being materialized, which keeps parsing cheap even for
// multi-gigabyte descriptors.
//
// Field numbers follow the serialized descriptor layout:
//
//	SavedModel:      1=saved_model_schema_version, 2=meta_graphs (repeated)
//	MetaGraphDef:    1=meta_info_def, 5=signature_def (map<string, SignatureDef>)
//	MetaInfoDef:     4=tags (repeated), 5=tensorflow_version, 6=tensorflow_git_version
//	SignatureDef:    1=inputs, 2=outputs (map<string, TensorInfo>), 3=method_name
//	TensorInfo:      1=name, 2=dtype (enum), 3=tensor_shape
//	TensorShape:     2=dim (repeated, 1=size), 3=unknown_rank

type savedModelProto struct {
	schemaVersion int64
	metaGraphs    []metaGraphDefProto
}

type metaGraphDefProto struct {
	metaInfo   metaInfoDefProto
	signatures map[string]signatureDefProto
}

type metaInfoDefProto struct {
	tags                 []string
	tensorflowVersion    string
	tensorflowGitVersion string
}

type signatureDefProto struct {
	methodName string
	inputs     map[string]tensorInfoProto
	outputs    map[string]tensorInfoProto
}

type tensorInfoProto struct {
	name        string
	dtype       int32
	dims        []int64
	unknownRank bool
}

func parseSavedModel(data []byte) (*savedModelProto, error) {
	sm := &savedModelProto{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			sm.schemaVersion = int64(v)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			mg, err := parseMetaGraphDef(raw)
			if err != nil {
				return nil, fmt.Errorf("meta graph %d: %w", len(sm.metaGraphs), err)
			}
			sm.metaGraphs = append(sm.metaGraphs, mg)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return sm, nil
}

func parseMetaGraphDef(data []byte) (metaGraphDefProto, error) {
	mg := metaGraphDefProto{signatures: make(map[string]signatureDefProto)}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return mg, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return mg, protowire.ParseError(n)
			}
			info, err := parseMetaInfoDef(raw)
			if err != nil {
				return mg, err
			}
			mg.metaInfo = info
			data = data[n:]
		case num == 5 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return mg, protowire.ParseError(n)
			}
			key, sig, err := parseSignatureDefEntry(raw)
			if err != nil {
				return mg, err
			}
			mg.signatures[key] = sig
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return mg, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return mg, nil
}

func parseMetaInfoDef(data []byte) (metaInfoDefProto, error) {
	var info metaInfoDefProto
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return info, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == 4 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			info.tags = append(info.tags, string(raw))
			data = data[n:]
		case num == 5 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			info.tensorflowVersion = string(raw)
			data = data[n:]
		case num == 6 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			info.tensorflowGitVersion = string(raw)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return info, nil
}

// parseSignatureDefEntry decodes one signature_def map entry (1=key, 2=value).
func parseSignatureDefEntry(data []byte) (string, signatureDefProto, error) {
	var key string
	var sig signatureDefProto
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", sig, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", sig, protowire.ParseError(n)
			}
			key = string(raw)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", sig, protowire.ParseError(n)
			}
			parsed, err := parseSignatureDef(raw)
			if err != nil {
				return "", sig, fmt.Errorf("signature %q: %w", key, err)
			}
			sig = parsed
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return "", sig, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return key, sig, nil
}

func parseSignatureDef(data []byte) (signatureDefProto, error) {
	sig := signatureDefProto{
		inputs:  make(map[string]tensorInfoProto),
		outputs: make(map[string]tensorInfoProto),
	}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return sig, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case (num == 1 || num == 2) && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return sig, protowire.ParseError(n)
			}
			key, info, err := parseTensorInfoEntry(raw)
			if err != nil {
				return sig, err
			}
			if num == 1 {
				sig.inputs[key] = info
			} else {
				sig.outputs[key] = info
			}
			data = data[n:]
		case num == 3 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return sig, protowire.ParseError(n)
			}
			sig.methodName = string(raw)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return sig, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return sig, nil
}

// parseTensorInfoEntry decodes one inputs/outputs map entry (1=key, 2=value).
func parseTensorInfoEntry(data []byte) (string, tensorInfoProto, error) {
	var key string
	var info tensorInfoProto
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", info, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", info, protowire.ParseError(n)
			}
			key = string(raw)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", info, protowire.ParseError(n)
			}
			parsed, err := parseTensorInfo(raw)
			if err != nil {
				return "", info, fmt.Errorf("tensor %q: %w", key, err)
			}
			info = parsed
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return "", info, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return key, info, nil
}

func parseTensorInfo(data []byte) (tensorInfoProto, error) {
	var info tensorInfoProto
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return info, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			info.name = string(raw)
			data = data[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			info.dtype = int32(v)
			data = data[n:]
		case num == 3 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			if err := parseTensorShape(raw, &info); err != nil {
				return info, err
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return info, nil
}

func parseTensorShape(data []byte, info *tensorInfoProto) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == 2 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			size, err := parseDim(raw)
			if err != nil {
				return err
			}
			info.dims = append(info.dims, size)
			data = data[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			info.unknownRank = v != 0
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// parseDim decodes one TensorShape dim entry (1=size). Unknown dimensions
// are serialized as -1.
func parseDim(data []byte) (int64, error) {
	var size int64
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			size = int64(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return size, nil
}
