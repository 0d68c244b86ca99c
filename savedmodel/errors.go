package savedmodel

import "errors"

// Sentinel errors returned by this package. All are wrapped with context at
// the failure site; match them with errors.Is. Filesystem failures from
// descriptor reads are not listed here: they wrap the os errors directly,
// so errors.Is(err, os.ErrNotExist) and friends keep working.
var (
	// ErrCorruptDescriptor reports a saved_model.pb file whose bytes do not
	// decode as a SavedModel descriptor.
	ErrCorruptDescriptor = errors.New("corrupt saved model descriptor")

	// ErrTagsNotFound reports that no MetaGraph in the descriptor carries
	// exactly the requested tag set.
	ErrTagsNotFound = errors.New("saved model tags not found")

	// ErrSignatureNotFound reports that the selected MetaGraph has no
	// signature under the requested key.
	ErrSignatureNotFound = errors.New("saved model signature not found")

	// ErrUnsupportedDType reports a signature tensor whose dtype has no
	// wrapper representation.
	ErrUnsupportedDType = errors.New("unsupported tensor dtype")

	// ErrInputMismatch reports a predict call whose tensors do not line up
	// with the signature's declared inputs.
	ErrInputMismatch = errors.New("model input mismatch")

	// ErrOutputCountMismatch reports a session run that produced a
	// different number of tensors than the signature declares.
	ErrOutputCountMismatch = errors.New("model output count mismatch")

	// ErrModelDisposed reports a call on a model handle after Dispose.
	ErrModelDisposed = errors.New("model has been disposed")

	// ErrAlreadyDisposed reports a second Dispose on the same handle.
	ErrAlreadyDisposed = errors.New("model already disposed")

	// ErrNotImplemented reports an operation this backend does not support.
	ErrNotImplemented = errors.New("not implemented")

	// ErrRegistryClosed reports a load against a registry whose Close has
	// already run.
	ErrRegistryClosed = errors.New("model registry is closed")
)
