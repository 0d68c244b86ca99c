package savedmodel

import (
	"fmt"
	"os"
	"path/filepath"
)

// DescriptorFileName is the name of the binary descriptor inside a
// SavedModel directory.
const DescriptorFileName = "saved_model.pb"

// readSavedModel reads and decodes the descriptor from a SavedModel
// directory. Filesystem errors wrap the underlying os error; undecodable
// bytes wrap ErrCorruptDescriptor.
func readSavedModel(dir string) (*savedModelProto, error) {
	path := filepath.Join(dir, DescriptorFileName)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("saved model descriptor %q is not readable: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("saved model descriptor %q is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read saved model descriptor %q: %w", path, err)
	}

	proto, err := parseSavedModel(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptDescriptor, path, err)
	}
	return proto, nil
}
