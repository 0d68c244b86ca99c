package tf

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"unsafe"
)

// nativeSession pairs a TF_Session with the TF_Graph the SavedModel was
// restored into. The graph owns the operations session runs resolve
// endpoints against, so both are released together.
type nativeSession struct {
	session uintptr // TF_Session*
	graph   uintptr // TF_Graph*

	// runMu serializes SessionRun calls issued against this native session.
	runMu sync.Mutex
}

// sessions maps the ids handed to callers onto live native state. Guarded
// by mu. Ids are monotonic and never reused, so a stale id can never
// address a session loaded later.
var (
	sessions      = make(map[int64]*nativeSession)
	nextSessionID int64
)

// tfOutput mirrors the TF_Output ABI record: an operation pointer plus an
// output index. The trailing padding keeps the struct at 16 bytes so a Go
// slice of tfOutput has the same layout as a C array of TF_Output.
type tfOutput struct {
	oper  uintptr
	index int32
	_     int32
}

// LoadGraph restores a SavedModel from exportDir into a fresh graph and
// session. tags is the comma-joined tag set selecting which MetaGraph to
// restore. It returns an id for the new session; the id stays valid until
// ReleaseSession.
func LoadGraph(exportDir string, tags string) (int64, error) {
	tagList := splitTags(tags)
	if len(tagList) == 0 {
		return 0, fmt.Errorf("cannot load saved model from %q: no tags given", exportDir)
	}

	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	newSessionOptions := newSessionOptionsFunc
	deleteSessionOptions := deleteSessionOptionsFunc
	newGraph := newGraphFunc
	deleteGraph := deleteGraphFunc
	loadSession := loadSessionFromSavedModelFunc
	mu.Unlock()

	if newSessionOptions == nil || deleteSessionOptions == nil || newGraph == nil || deleteGraph == nil || loadSession == nil {
		return 0, fmt.Errorf("TensorFlow environment not initialized")
	}

	options := newSessionOptions()
	if options == 0 {
		return 0, fmt.Errorf("failed to create session options")
	}
	defer deleteSessionOptions(options)

	graph := newGraph()
	if graph == 0 {
		return 0, fmt.Errorf("failed to create graph")
	}

	status := newStatus()
	defer releaseStatus(status)

	dirBytes, dirPtr := GoToCstring(exportDir)
	tagBacking, tagPointers := makeCStringPointerArray(tagList)

	session := loadSession(options, 0, dirPtr, uintptr(unsafe.Pointer(&tagPointers[0])), int32(len(tagPointers)), graph, 0, status)
	runtime.KeepAlive(dirBytes)
	runtime.KeepAlive(tagBacking)
	runtime.KeepAlive(tagPointers)

	if err := statusErr(status); err != nil {
		deleteGraph(graph)
		return 0, fmt.Errorf("failed to load saved model from %q (tags %q): %w", exportDir, tags, err)
	}
	if session == 0 {
		deleteGraph(graph)
		return 0, fmt.Errorf("failed to load saved model from %q (tags %q)", exportDir, tags)
	}

	mu.Lock()
	id := nextSessionID
	nextSessionID++
	sessions[id] = &nativeSession{session: session, graph: graph}
	mu.Unlock()

	return id, nil
}

// RunGraph executes one session run. inputs are paired positionally with
// inputSpecs and converted to each endpoint's declared element type;
// results come back in outputSpecs order as tensors owned by Go.
func RunGraph(sessionID int64, inputs []Value, inputSpecs, outputSpecs []NodeSpec) ([]Value, error) {
	if len(inputs) != len(inputSpecs) {
		return nil, fmt.Errorf("input count mismatch: got %d tensors for %d graph endpoints", len(inputs), len(inputSpecs))
	}

	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	sess := sessions[sessionID]
	operationByName := graphOperationByNameFunc
	allocateTensor := allocateTensorFunc
	deleteTensor := deleteTensorFunc
	tensorData := tensorDataFunc
	tensorByteSize := tensorByteSizeFunc
	tensorType := tensorTypeFunc
	numDims := numDimsFunc
	dim := dimFunc
	sessionRun := sessionRunFunc
	mu.Unlock()

	if sess == nil {
		return nil, fmt.Errorf("unknown session id %d", sessionID)
	}
	if operationByName == nil || allocateTensor == nil || deleteTensor == nil || tensorData == nil ||
		tensorByteSize == nil || tensorType == nil || numDims == nil || dim == nil || sessionRun == nil {
		return nil, fmt.Errorf("TensorFlow environment not initialized")
	}

	inputEndpoints, inputNames, err := resolveEndpoints(operationByName, sess.graph, inputSpecs)
	if err != nil {
		return nil, err
	}
	outputEndpoints, outputNames, err := resolveEndpoints(operationByName, sess.graph, outputSpecs)
	if err != nil {
		return nil, err
	}

	inputValues := make([]uintptr, len(inputs))
	defer func() {
		for _, handle := range inputValues {
			if handle != 0 {
				deleteTensor(handle)
			}
		}
	}()
	for i, value := range inputs {
		handle, err := newNativeTensor(allocateTensor, tensorData, deleteTensor, inputSpecs[i], value)
		if err != nil {
			return nil, err
		}
		inputValues[i] = handle
	}

	outputValues := make([]uintptr, len(outputSpecs))
	defer func() {
		for _, handle := range outputValues {
			if handle != 0 {
				deleteTensor(handle)
			}
		}
	}()

	status := newStatus()
	defer releaseStatus(status)

	var inputsPtr, inputValuesPtr, outputsPtr, outputValuesPtr uintptr
	if len(inputEndpoints) > 0 {
		inputsPtr = uintptr(unsafe.Pointer(&inputEndpoints[0]))
		inputValuesPtr = uintptr(unsafe.Pointer(&inputValues[0]))
	}
	if len(outputEndpoints) > 0 {
		outputsPtr = uintptr(unsafe.Pointer(&outputEndpoints[0]))
		outputValuesPtr = uintptr(unsafe.Pointer(&outputValues[0]))
	}

	sess.runMu.Lock()
	sessionRun(sess.session, 0,
		inputsPtr, inputValuesPtr, int32(len(inputs)),
		outputsPtr, outputValuesPtr, int32(len(outputSpecs)),
		0, 0, 0, status)
	sess.runMu.Unlock()
	runtime.KeepAlive(inputEndpoints)
	runtime.KeepAlive(outputEndpoints)
	runtime.KeepAlive(inputNames)
	runtime.KeepAlive(outputNames)

	if err := statusErr(status); err != nil {
		return nil, fmt.Errorf("session run failed: %w", err)
	}

	results := make([]Value, len(outputValues))
	for i, handle := range outputValues {
		if handle == 0 {
			return nil, fmt.Errorf("session run returned no tensor for output %q", outputSpecs[i].Name)
		}
		value, err := materializeNativeTensor(tensorType, numDims, dim, tensorByteSize, tensorData, handle, outputSpecs[i].Name)
		if err != nil {
			return nil, err
		}
		results[i] = value
	}

	return results, nil
}

// ReleaseSession closes and deletes a native session and its graph, then
// forgets the id. Close and delete failures are both reported; the id is
// removed from the table regardless so a failing session cannot be leaked
// into further use.
func ReleaseSession(sessionID int64) error {
	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	sess, ok := sessions[sessionID]
	if ok {
		delete(sessions, sessionID)
	}
	closeSession := closeSessionFunc
	deleteSession := deleteSessionFunc
	deleteGraph := deleteGraphFunc
	mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown session id %d", sessionID)
	}
	if closeSession == nil || deleteSession == nil || deleteGraph == nil {
		return fmt.Errorf("TensorFlow environment not initialized")
	}

	status := newStatus()
	defer releaseStatus(status)

	closeSession(sess.session, status)
	closeErr := statusErr(status)
	if closeErr != nil {
		closeErr = fmt.Errorf("failed to close session %d: %w", sessionID, closeErr)
	}

	deleteSession(sess.session, status)
	deleteErr := statusErr(status)
	if deleteErr != nil {
		deleteErr = fmt.Errorf("failed to delete session %d: %w", sessionID, deleteErr)
	}

	deleteGraph(sess.graph)

	return errors.Join(closeErr, deleteErr)
}

// ActiveSessions returns the number of native sessions currently loaded.
func ActiveSessions() int {
	mu.Lock()
	defer mu.Unlock()
	return len(sessions)
}

// splitTags splits a comma-joined tag string, dropping empty entries.
func splitTags(tags string) []string {
	var list []string
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			list = append(list, tag)
		}
	}
	return list
}

// resolveEndpoints maps node references onto TF_Output records by resolving
// each operation name in the graph. The returned name backing slices must
// stay alive until the native call that consumes the records has returned.
func resolveEndpoints(operationByName func(graph, opName uintptr) uintptr, graph uintptr, specs []NodeSpec) ([]tfOutput, [][]byte, error) {
	if len(specs) == 0 {
		return nil, nil, nil
	}

	endpoints := make([]tfOutput, len(specs))
	backing := make([][]byte, len(specs))
	for i, spec := range specs {
		opName, index, err := parseNodeName(spec.Name)
		if err != nil {
			return nil, nil, err
		}

		nameBytes, namePtr := GoToCstring(opName)
		backing[i] = nameBytes

		oper := operationByName(graph, namePtr)
		if oper == 0 {
			return nil, nil, fmt.Errorf("operation %q not found in graph", opName)
		}
		endpoints[i] = tfOutput{oper: oper, index: index}
	}

	return endpoints, backing, nil
}

// newNativeTensor allocates a TF_Tensor for one graph endpoint and fills it
// with the value's data converted to the endpoint's declared element type.
func newNativeTensor(allocateTensor func(dtype int32, dims uintptr, numDims int32, byteSize uintptr) uintptr,
	tensorData func(tensor uintptr) uintptr, deleteTensor func(tensor uintptr),
	spec NodeSpec, value Value) (uintptr, error) {

	data, err := marshalValue(value, spec.DType)
	if err != nil {
		return 0, fmt.Errorf("input %q: %w", spec.Name, err)
	}

	shape := value.Shape()
	var dimsPtr uintptr
	if len(shape) > 0 {
		dimsPtr = uintptr(unsafe.Pointer(&shape[0]))
	}

	handle := allocateTensor(int32(spec.DType), dimsPtr, int32(len(shape)), uintptr(len(data)))
	runtime.KeepAlive(shape)
	if handle == 0 {
		return 0, fmt.Errorf("failed to allocate native tensor for input %q", spec.Name)
	}

	if len(data) > 0 {
		ptr := tensorData(handle)
		if ptr == 0 {
			deleteTensor(handle)
			return 0, fmt.Errorf("native tensor for input %q has no data buffer", spec.Name)
		}
		dst := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), len(data))
		copy(dst, data)
	}

	return handle, nil
}

// materializeNativeTensor copies a native result tensor into a Go-owned
// Value. The native tensor is left untouched; the caller releases it.
func materializeNativeTensor(tensorType func(tensor uintptr) int32,
	numDims func(tensor uintptr) int32, dim func(tensor uintptr, index int32) int64,
	tensorByteSize func(tensor uintptr) uintptr, tensorData func(tensor uintptr) uintptr,
	handle uintptr, name string) (Value, error) {

	dtype := DataType(tensorType(handle))

	rank := numDims(handle)
	if rank < 0 {
		return nil, fmt.Errorf("output %q: native tensor reports negative rank %d", name, rank)
	}
	shape := make(Shape, rank)
	for i := range shape {
		shape[i] = dim(handle, int32(i))
	}

	size := tensorByteSize(handle)
	data := make([]byte, size)
	if size > 0 {
		ptr := tensorData(handle)
		if ptr == 0 {
			return nil, fmt.Errorf("output %q: native tensor has no data buffer", name)
		}
		copy(data, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size))
	}

	value, err := materializeValue(dtype, shape, data)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", name, err)
	}
	return value, nil
}
