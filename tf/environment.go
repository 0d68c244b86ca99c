package tf

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

var (
	mu       sync.Mutex
	refCount int
	tfLib    uintptr
	libPath  string

	// callMu serializes native calls against library teardown. Callers of
	// registered functions hold the read side; DestroyEnvironment takes the
	// write side before unregistering and closing the library.
	callMu sync.RWMutex
)

// Registered libtensorflow entry points. Populated by InitializeEnvironment,
// reset to nil on final DestroyEnvironment. Tests inject fakes here under mu.
var (
	versionFunc                   func() string
	newStatusFunc                 func() uintptr
	deleteStatusFunc              func(status uintptr)
	getCodeFunc                   func(status uintptr) int32
	messageFunc                   func(status uintptr) uintptr
	newGraphFunc                  func() uintptr
	deleteGraphFunc               func(graph uintptr)
	newSessionOptionsFunc         func() uintptr
	deleteSessionOptionsFunc      func(options uintptr)
	loadSessionFromSavedModelFunc func(options, runOptions, exportDir, tags uintptr, tagsLen int32, graph, metaGraphDef, status uintptr) uintptr
	closeSessionFunc              func(session, status uintptr)
	deleteSessionFunc             func(session, status uintptr)
	graphOperationByNameFunc      func(graph, opName uintptr) uintptr
	allocateTensorFunc            func(dtype int32, dims uintptr, numDims int32, byteSize uintptr) uintptr
	deleteTensorFunc              func(tensor uintptr)
	tensorDataFunc                func(tensor uintptr) uintptr
	tensorByteSizeFunc            func(tensor uintptr) uintptr
	tensorTypeFunc                func(tensor uintptr) int32
	numDimsFunc                   func(tensor uintptr) int32
	dimFunc                       func(tensor uintptr, index int32) int64
	sessionRunFunc                func(session, runOptions, inputs, inputValues uintptr, ninputs int32, outputs, outputValues uintptr, noutputs int32, targets uintptr, ntargets int32, runMetadata, status uintptr)
)

// SetSharedLibraryPath sets the path to the TensorFlow C shared library
// (libtensorflow). It must be called before InitializeEnvironment and cannot
// be changed while the environment is initialized.
func SetSharedLibraryPath(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if refCount > 0 {
		return fmt.Errorf("cannot change library path after environment is initialized")
	}

	libPath = path
	return nil
}

// InitializeEnvironment loads the TensorFlow C library and registers its
// entry points. Calls are reference counted: every successful call must be
// paired with a DestroyEnvironment call, and only the first load performs
// real work.
func InitializeEnvironment() error {
	mu.Lock()
	defer mu.Unlock()

	if refCount > 0 {
		refCount++
		return nil
	}

	if libPath == "" {
		return fmt.Errorf("library path not set, call SetSharedLibraryPath first")
	}

	lib, err := loadLibrary(libPath)
	if err != nil || lib == 0 {
		if err != nil {
			return fmt.Errorf("failed to load TensorFlow C library %q: %w", libPath, err)
		}
		return fmt.Errorf("failed to load TensorFlow C library %q", libPath)
	}

	if err := registerFunctions(lib); err != nil {
		unregisterFunctions()
		_ = closeLibrary(lib)
		return err
	}

	tfLib = lib
	refCount = 1
	return nil
}

// DestroyEnvironment decrements the environment reference count and, when it
// reaches zero, unregisters all entry points and closes the library. It
// refuses to tear down while native sessions are still loaded.
func DestroyEnvironment() error {
	mu.Lock()
	if refCount == 0 {
		mu.Unlock()
		return nil
	}

	if refCount > 1 {
		refCount--
		mu.Unlock()
		return nil
	}

	if active := len(sessions); active > 0 {
		mu.Unlock()
		return fmt.Errorf("cannot destroy environment: %d native sessions still loaded", active)
	}

	lib := tfLib
	tfLib = 0
	refCount = 0
	mu.Unlock()

	callMu.Lock()
	defer callMu.Unlock()

	mu.Lock()
	unregisterFunctions()
	mu.Unlock()

	if lib != 0 {
		return closeLibrary(lib)
	}
	return nil
}

// IsInitialized returns true if the environment is initialized
func IsInitialized() bool {
	mu.Lock()
	defer mu.Unlock()
	return refCount > 0
}

// Version returns the TensorFlow C library version string (TF_Version).
// Returns "0.0.0-dev" when the environment is not initialized.
func Version() string {
	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	version := versionFunc
	mu.Unlock()

	if version == nil {
		return "0.0.0-dev"
	}
	return version()
}

func registerFunctions(lib uintptr) error {
	symbols := []struct {
		name     string
		register func(addr uintptr)
	}{
		{"TF_Version", func(addr uintptr) { purego.RegisterFunc(&versionFunc, addr) }},
		{"TF_NewStatus", func(addr uintptr) { purego.RegisterFunc(&newStatusFunc, addr) }},
		{"TF_DeleteStatus", func(addr uintptr) { purego.RegisterFunc(&deleteStatusFunc, addr) }},
		{"TF_GetCode", func(addr uintptr) { purego.RegisterFunc(&getCodeFunc, addr) }},
		{"TF_Message", func(addr uintptr) { purego.RegisterFunc(&messageFunc, addr) }},
		{"TF_NewGraph", func(addr uintptr) { purego.RegisterFunc(&newGraphFunc, addr) }},
		{"TF_DeleteGraph", func(addr uintptr) { purego.RegisterFunc(&deleteGraphFunc, addr) }},
		{"TF_NewSessionOptions", func(addr uintptr) { purego.RegisterFunc(&newSessionOptionsFunc, addr) }},
		{"TF_DeleteSessionOptions", func(addr uintptr) { purego.RegisterFunc(&deleteSessionOptionsFunc, addr) }},
		{"TF_LoadSessionFromSavedModel", func(addr uintptr) { purego.RegisterFunc(&loadSessionFromSavedModelFunc, addr) }},
		{"TF_CloseSession", func(addr uintptr) { purego.RegisterFunc(&closeSessionFunc, addr) }},
		{"TF_DeleteSession", func(addr uintptr) { purego.RegisterFunc(&deleteSessionFunc, addr) }},
		{"TF_GraphOperationByName", func(addr uintptr) { purego.RegisterFunc(&graphOperationByNameFunc, addr) }},
		{"TF_AllocateTensor", func(addr uintptr) { purego.RegisterFunc(&allocateTensorFunc, addr) }},
		{"TF_DeleteTensor", func(addr uintptr) { purego.RegisterFunc(&deleteTensorFunc, addr) }},
		{"TF_TensorData", func(addr uintptr) { purego.RegisterFunc(&tensorDataFunc, addr) }},
		{"TF_TensorByteSize", func(addr uintptr) { purego.RegisterFunc(&tensorByteSizeFunc, addr) }},
		{"TF_TensorType", func(addr uintptr) { purego.RegisterFunc(&tensorTypeFunc, addr) }},
		{"TF_NumDims", func(addr uintptr) { purego.RegisterFunc(&numDimsFunc, addr) }},
		{"TF_Dim", func(addr uintptr) { purego.RegisterFunc(&dimFunc, addr) }},
		{"TF_SessionRun", func(addr uintptr) { purego.RegisterFunc(&sessionRunFunc, addr) }},
	}

	for _, sym := range symbols {
		addr, err := getSymbol(lib, sym.name)
		if err != nil || addr == 0 {
			if err != nil {
				return fmt.Errorf("failed to resolve symbol %q in TensorFlow C library: %w", sym.name, err)
			}
			return fmt.Errorf("failed to resolve symbol %q in TensorFlow C library", sym.name)
		}
		sym.register(addr)
	}

	return nil
}

func unregisterFunctions() {
	versionFunc = nil
	newStatusFunc = nil
	deleteStatusFunc = nil
	getCodeFunc = nil
	messageFunc = nil
	newGraphFunc = nil
	deleteGraphFunc = nil
	newSessionOptionsFunc = nil
	deleteSessionOptionsFunc = nil
	loadSessionFromSavedModelFunc = nil
	closeSessionFunc = nil
	deleteSessionFunc = nil
	graphOperationByNameFunc = nil
	allocateTensorFunc = nil
	deleteTensorFunc = nil
	tensorDataFunc = nil
	tensorByteSizeFunc = nil
	tensorTypeFunc = nil
	numDimsFunc = nil
	dimFunc = nil
	sessionRunFunc = nil
}

// newStatus allocates a native status object, or 0 when the library is not
// initialized. Callers release it with releaseStatus.
func newStatus() uintptr {
	mu.Lock()
	create := newStatusFunc
	mu.Unlock()

	if create == nil {
		return 0
	}
	return create()
}

// releaseStatus frees a native status object. Safe on 0 handles and when the
// library is not initialized.
func releaseStatus(status uintptr) {
	if status == 0 {
		return
	}

	mu.Lock()
	release := deleteStatusFunc
	mu.Unlock()

	if release == nil {
		return
	}
	release(status)
}

// statusCode reads the code from a native status object. A 0 handle or an
// uninitialized library reads as CodeOK.
func statusCode(status uintptr) Code {
	if status == 0 {
		return CodeOK
	}

	mu.Lock()
	getCode := getCodeFunc
	mu.Unlock()

	if getCode == nil {
		return CodeOK
	}
	return Code(getCode(status))
}

// statusMessage reads the message from a native status object. Returns ""
// for 0 handles and when the library is not initialized.
func statusMessage(status uintptr) string {
	if status == 0 {
		return ""
	}

	mu.Lock()
	message := messageFunc
	mu.Unlock()

	if message == nil {
		return ""
	}
	return CstringToGo(message(status))
}

// statusErr converts a native status object into a Go error, or nil when the
// status reports OK.
func statusErr(status uintptr) error {
	code := statusCode(status)
	if code == CodeOK {
		return nil
	}

	message := statusMessage(status)
	if message == "" {
		return fmt.Errorf("tensorflow: %s", code)
	}
	return fmt.Errorf("tensorflow: %s: %s", code, message)
}
