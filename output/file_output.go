package output

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"

	"github.com/dicomnode/pipeline/types"
)

// FileTarget pairs a filesystem destination with the value to write there:
// either a single *types.Dataset (written directly to Path) or a
// []*types.Dataset (written as one file per instance, named by
// SOPInstanceUID, under the Path directory).
type FileTarget struct {
	Path  string
	Value interface{}
}

// FileOutput writes each of its Targets to disk, grounded on
// input.Input.writeThrough's use of dicom.Write for on-disk instances.
type FileOutput struct {
	Targets []FileTarget
	Logger  *slog.Logger
}

// Send writes every target and returns whether all of them succeeded.
// Failures are logged individually rather than aborting the remaining
// targets, and the core never retries (spec §4.H).
func (o FileOutput) Send() bool {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ok := true
	for _, target := range o.Targets {
		if err := writeTarget(target); err != nil {
			logger.Error("file output failed", "path", target.Path, "error", err)
			ok = false
		}
	}
	return ok
}

func writeTarget(target FileTarget) error {
	switch v := target.Value.(type) {
	case *types.Dataset:
		return writeDataset(target.Path, v)
	case []*types.Dataset:
		if err := os.MkdirAll(target.Path, 0o755); err != nil {
			return err
		}
		for _, ds := range v {
			sopInstanceUID, err := ds.SOPInstanceUID()
			if err != nil {
				return err
			}
			if err := writeDataset(filepath.Join(target.Path, sopInstanceUID), ds); err != nil {
				return err
			}
		}
		return nil
	default:
		return &unsupportedValueError{target.Path}
	}
}

func writeDataset(path string, ds *types.Dataset) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return dicom.Write(f, ds.Inner)
}

type unsupportedValueError struct{ path string }

func (e *unsupportedValueError) Error() string {
	return "output: unsupported value type for target " + e.path
}
