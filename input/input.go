// Package input implements the per-input accumulator (spec component C): a
// buffer that gates admission on a required-tag set, exposes a
// user-overridable completeness predicate, and grinds its held Datasets
// into a user-domain value through the Grinder algebra. Grounded on
// original_source/src/dicomnode/tests/tests_studyTree.py (SeriesTree leaf
// storage) and original_source/src/dicomnode/lib/grinders.py (the
// grinder contract); the class-level configuration the original expresses
// through subclassing is re-architected as a Config value plus strategy
// callbacks, per spec §9.
package input

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dicomnode/pipeline/errors"
	"github.com/dicomnode/pipeline/tree"
	"github.com/dicomnode/pipeline/types"
)

// Config is the class-level configuration of an Input, supplied at
// construction time instead of through subclassing.
type Config struct {
	// RequiredTags gates admission: add() fails fast with 0xB006 if any is
	// absent from the incoming dataset.
	RequiredTags []tag.Tag
	// Grinder collapses the held Datasets into a user-domain value. If
	// nil, ListGrinder is used.
	Grinder Grinder
	// Validate is the completeness predicate over the held Datasets. If
	// nil, the Input is considered ready as soon as it holds one dataset.
	Validate func(datasets []*types.Dataset) bool
}

// Input is a per-input accumulator of Datasets for a single patient slot.
// Not safe for concurrent use from multiple goroutines without external
// synchronization; the pipeline tree (component D) serialises access per
// patient slot per spec §5.
type Input struct {
	cfg  Config
	name string

	// fsRoot, when non-empty, enables filesystem backing: datasets are
	// written through to <fsRoot>/<patientID>/<name>/<SOPInstanceUID>. The
	// in-memory store still holds each full Dataset as admitted.
	fsRoot    string
	patientID string

	mu             sync.Mutex
	store          *tree.SeriesTree // used as a flat SOPInstanceUID-keyed container, not a literal series
	lastValidation bool
}

// New creates an empty Input named name under cfg. fsRoot/patientID enable
// filesystem backing; pass "" for fsRoot to keep everything in memory.
func New(name string, cfg Config, fsRoot, patientID string) *Input {
	if cfg.Grinder == nil {
		cfg.Grinder = ListGrinder
	}
	return &Input{
		cfg:       cfg,
		name:      name,
		fsRoot:    fsRoot,
		patientID: patientID,
		store:     tree.NewSeriesTree(""),
	}
}

// Name returns the declared input name.
func (in *Input) Name() string { return in.name }

// RequiredTags returns the tags that gate admission into this Input.
func (in *Input) RequiredTags() []tag.Tag { return in.cfg.RequiredTags }

// FilesystemBacked reports whether this Input writes through to disk.
func (in *Input) FilesystemBacked() bool { return in.fsRoot != "" }

// Add verifies ds carries every required tag, appends it (writing through
// to disk if filesystem-backed), and returns the number of datasets now
// held. Re-evaluates the validity predicate before returning.
func (in *Input) Add(ds *types.Dataset) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for _, tg := range in.cfg.RequiredTags {
		if !ds.Has(tg) {
			return in.store.Count(), errors.NewInvalidDataset(0xB006, "dataset missing tag required by input "+in.name)
		}
	}

	if in.fsRoot != "" {
		if err := in.writeThrough(ds); err != nil {
			return in.store.Count(), err
		}
	}

	if err := in.store.Add(ds); err != nil {
		return in.store.Count(), err
	}

	in.lastValidation = in.validateLocked()
	return in.store.Count(), nil
}

// writeThrough persists ds under <fsRoot>/<patientID>/<name>/<SOPInstanceUID>.
func (in *Input) writeThrough(ds *types.Dataset) error {
	sopInstanceUID, err := ds.SOPInstanceUID()
	if err != nil || sopInstanceUID == "" {
		return errors.NewInvalidDataset(0xB006, "dataset missing SOPInstanceUID for filesystem backing")
	}

	dir := filepath.Join(in.fsRoot, in.patientID, in.name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewCouldNotCompleteDIMSEMessage("write instance directory", err)
	}

	path := filepath.Join(dir, sopInstanceUID)
	f, err := os.Create(path)
	if err != nil {
		return errors.NewCouldNotCompleteDIMSEMessage("create instance file", err)
	}
	defer f.Close()

	if err := dicom.Write(f, ds.Inner); err != nil {
		return errors.NewCouldNotCompleteDIMSEMessage("write instance file", err)
	}
	return nil
}

// Validate re-evaluates and returns the completeness predicate. Pure over
// the held datasets; may be called repeatedly.
func (in *Input) Validate() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.lastValidation = in.validateLocked()
	return in.lastValidation
}

func (in *Input) validateLocked() bool {
	if in.cfg.Validate == nil {
		return in.store.Count() > 0
	}
	return in.cfg.Validate(in.datasetsLocked())
}

// LastValidation returns the most recently computed validity, without
// recomputing it.
func (in *Input) LastValidation() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.lastValidation
}

// Count returns the number of datasets currently held.
func (in *Input) Count() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.store.Count()
}

// Grind runs the configured grinder over the held Datasets. Under
// filesystem backing, the datasets are first streamed back from disk.
func (in *Input) Grind() (interface{}, error) {
	in.mu.Lock()
	datasets := in.datasetsLocked()
	grinder := in.cfg.Grinder
	in.mu.Unlock()

	resolved, err := in.resolveDatasets(datasets)
	if err != nil {
		return nil, err
	}
	return grinder(resolved)
}

// datasetsLocked returns the in-memory datasets held by store, which are
// the Datasets as admitted in both modes; Grind passes them through
// resolveDatasets, which substitutes the on-disk copies under filesystem
// backing.
func (in *Input) datasetsLocked() []*types.Dataset {
	return in.store.Datasets()
}

// resolveDatasets returns datasets unchanged in in-memory mode; under
// filesystem backing it re-parses each instance file from disk so the
// grinder sees the persisted instances. The in-memory buffer keeps its own
// copies of the admitted Datasets alongside.
func (in *Input) resolveDatasets(datasets []*types.Dataset) ([]*types.Dataset, error) {
	if in.fsRoot == "" {
		return datasets, nil
	}

	out := make([]*types.Dataset, 0, len(datasets))
	dir := filepath.Join(in.fsRoot, in.patientID, in.name)
	for _, ds := range datasets {
		sopInstanceUID, err := ds.SOPInstanceUID()
		if err != nil {
			return nil, err
		}
		parsed, err := dicom.ParseFile(filepath.Join(dir, sopInstanceUID))
		if err != nil {
			return nil, errors.NewCouldNotCompleteDIMSEMessage("read instance file", err)
		}
		out = append(out, types.WrapDataset(parsed))
	}
	return out, nil
}

// Clear empties the Input and, if filesystem-backed, removes its on-disk
// directory. Called when the enclosing patient slot is released.
func (in *Input) Clear() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.store = tree.NewSeriesTree("")
	in.lastValidation = false

	if in.fsRoot == "" {
		return nil
	}
	dir := filepath.Join(in.fsRoot, in.patientID, in.name)
	if err := os.RemoveAll(dir); err != nil {
		return errors.NewCouldNotCompleteDIMSEMessage("remove input directory", err)
	}
	return nil
}
