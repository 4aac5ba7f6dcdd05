package tree

import (
	"io/fs"
	"path/filepath"

	"github.com/suyashkumar/dicom"

	"github.com/dicomnode/pipeline/types"
)

// walkDatasets recursively parses every regular file under root as a DICOM
// Part 10 stream, calling visit with the decoded dataset. Unparsable files
// are fatal under strict, otherwise reported through onSkip and skipped.
func walkDatasets(root string, visit func(path string, ds *types.Dataset) error, strict bool, onSkip func(path string, err error)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		parsed, parseErr := dicom.ParseFile(path)
		if parseErr != nil {
			if strict {
				return parseErr
			}
			if onSkip != nil {
				onSkip(path, parseErr)
			}
			return nil
		}

		return visit(path, types.WrapDataset(parsed))
	})
}
