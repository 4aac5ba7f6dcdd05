// Package tree implements the four-level hierarchical DICOM container
// (Patients -> Studies -> Series -> Instances) that the pipeline buffers
// partial studies in. Grounded on the teacher's layered-package style
// and on original_source/src/dicomnode/tests/tests_studyTree.go, the only
// surviving description of dicomnode.lib.imageTree's DicomTree/PatientTree/
// StudyTree/SeriesTree API (the module itself was not kept in the pack).
package tree

import (
	"fmt"
	"strings"

	"github.com/dicomnode/pipeline/errors"
	"github.com/dicomnode/pipeline/types"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Leveled is the traversal interface every tier shares, per spec §9's
// "four concrete structs sharing a small interface" re-architecture.
type Leveled interface {
	// Count returns the number of leaf Datasets beneath this node.
	Count() int
	// Map applies f to every leaf Dataset in insertion order within this
	// tier; ordering across sibling subtrees is unspecified.
	Map(f func(*types.Dataset))
	// Trim removes every leaf for which keep returns false and returns the
	// number removed, deleting any interior node left with no children.
	Trim(keep func(*types.Dataset) bool) int
}

// SeriesTree holds the Datasets of a single SeriesInstanceUID, keyed by
// SOPInstanceUID.
type SeriesTree struct {
	SeriesInstanceUID string

	order []string
	data  map[string]*types.Dataset
}

func newSeriesTree(seriesInstanceUID string) *SeriesTree {
	return &SeriesTree{SeriesInstanceUID: seriesInstanceUID, data: make(map[string]*types.Dataset)}
}

// NewSeriesTree returns an empty leaf-level container keyed by
// SOPInstanceUID. Exported so collaborators - notably input.Input, whose
// accumulated-dataset buffer is "a SeriesTree-style container" per spec
// §3 - can reuse the same leaf storage instead of reimplementing it.
func NewSeriesTree(seriesInstanceUID string) *SeriesTree {
	return newSeriesTree(seriesInstanceUID)
}

// Datasets returns the held Datasets in insertion order.
func (t *SeriesTree) Datasets() []*types.Dataset {
	out := make([]*types.Dataset, len(t.order))
	for i, uid := range t.order {
		out[i] = t.data[uid]
	}
	return out
}

// Add inserts ds under its SOPInstanceUID, overwriting any prior dataset
// with the same UID (idempotent store).
func (t *SeriesTree) Add(ds *types.Dataset) error {
	sopInstanceUID, err := ds.SOPInstanceUID()
	if err != nil || sopInstanceUID == "" {
		return errors.NewInvalidDataset(0xB006, "dataset missing SOPInstanceUID")
	}
	if _, exists := t.data[sopInstanceUID]; !exists {
		t.order = append(t.order, sopInstanceUID)
	}
	t.data[sopInstanceUID] = ds
	return nil
}

func (t *SeriesTree) Count() int { return len(t.data) }

func (t *SeriesTree) Map(f func(*types.Dataset)) {
	for _, uid := range t.order {
		f(t.data[uid])
	}
}

func (t *SeriesTree) Trim(keep func(*types.Dataset) bool) int {
	removed := 0
	kept := t.order[:0]
	for _, uid := range t.order {
		if keep(t.data[uid]) {
			kept = append(kept, uid)
			continue
		}
		delete(t.data, uid)
		removed++
	}
	t.order = kept
	return removed
}

// StudyTree holds the SeriesTrees of a single StudyInstanceUID, keyed by
// SeriesInstanceUID.
type StudyTree struct {
	StudyInstanceUID string

	order []string
	data  map[string]*SeriesTree
}

func newStudyTree(studyInstanceUID string) *StudyTree {
	return &StudyTree{StudyInstanceUID: studyInstanceUID, data: make(map[string]*SeriesTree)}
}

func (t *StudyTree) Add(ds *types.Dataset) error {
	seriesInstanceUID, err := ds.SeriesInstanceUID()
	if err != nil || seriesInstanceUID == "" {
		return errors.NewInvalidDataset(0xB006, "dataset missing SeriesInstanceUID")
	}
	series, ok := t.data[seriesInstanceUID]
	if !ok {
		series = newSeriesTree(seriesInstanceUID)
		t.data[seriesInstanceUID] = series
		t.order = append(t.order, seriesInstanceUID)
	}
	return series.Add(ds)
}

func (t *StudyTree) Count() int {
	n := 0
	for _, s := range t.data {
		n += s.Count()
	}
	return n
}

func (t *StudyTree) Map(f func(*types.Dataset)) {
	for _, uid := range t.order {
		t.data[uid].Map(f)
	}
}

func (t *StudyTree) Trim(keep func(*types.Dataset) bool) int {
	removed := 0
	kept := t.order[:0]
	for _, uid := range t.order {
		removed += t.data[uid].Trim(keep)
		if t.data[uid].Count() == 0 {
			delete(t.data, uid)
			continue
		}
		kept = append(kept, uid)
	}
	t.order = kept
	return removed
}

// Series returns the SeriesTree for seriesInstanceUID, or nil if absent.
func (t *StudyTree) Series(seriesInstanceUID string) *SeriesTree {
	return t.data[seriesInstanceUID]
}

// PatientTree holds the StudyTrees of a single PatientID, keyed by
// StudyInstanceUID.
type PatientTree struct {
	PatientID string

	order []string
	data  map[string]*StudyTree
}

func newPatientTree(patientID string) *PatientTree {
	return &PatientTree{PatientID: patientID, data: make(map[string]*StudyTree)}
}

func (t *PatientTree) Add(ds *types.Dataset) error {
	studyInstanceUID, err := ds.StudyInstanceUID()
	if err != nil || studyInstanceUID == "" {
		return errors.NewInvalidDataset(0xB006, "dataset missing StudyInstanceUID")
	}
	study, ok := t.data[studyInstanceUID]
	if !ok {
		study = newStudyTree(studyInstanceUID)
		t.data[studyInstanceUID] = study
		t.order = append(t.order, studyInstanceUID)
	}
	return study.Add(ds)
}

func (t *PatientTree) Count() int {
	n := 0
	for _, s := range t.data {
		n += s.Count()
	}
	return n
}

func (t *PatientTree) Map(f func(*types.Dataset)) {
	for _, uid := range t.order {
		t.data[uid].Map(f)
	}
}

func (t *PatientTree) Trim(keep func(*types.Dataset) bool) int {
	removed := 0
	kept := t.order[:0]
	for _, uid := range t.order {
		removed += t.data[uid].Trim(keep)
		if t.data[uid].Count() == 0 {
			delete(t.data, uid)
			continue
		}
		kept = append(kept, uid)
	}
	t.order = kept
	return removed
}

// Study returns the StudyTree for studyInstanceUID, or nil if absent.
func (t *PatientTree) Study(studyInstanceUID string) *StudyTree {
	return t.data[studyInstanceUID]
}

// DicomTree is the root of the four-tier container, keyed by PatientID.
// Mirrors the original implementation's DicomTree(images, data) shape.
type DicomTree struct {
	order []string
	data  map[string]*PatientTree
}

// NewDicomTree returns an empty tree.
func NewDicomTree() *DicomTree {
	return &DicomTree{data: make(map[string]*PatientTree)}
}

// Add inserts ds into the correct tier, creating intermediate nodes as
// needed. Requires PatientID, StudyInstanceUID, SeriesInstanceUID, and
// SOPInstanceUID; fails with InvalidDataset otherwise.
func (t *DicomTree) Add(ds *types.Dataset) error {
	patientID, err := ds.PatientID()
	if err != nil || patientID == "" {
		return errors.NewInvalidDataset(0xB007, "dataset missing PatientID")
	}
	patient, ok := t.data[patientID]
	if !ok {
		patient = newPatientTree(patientID)
		t.data[patientID] = patient
		t.order = append(t.order, patientID)
	}
	return patient.Add(ds)
}

// AddAll adds every dataset in datasets, stopping at the first error.
func (t *DicomTree) AddAll(datasets []*types.Dataset) error {
	for _, ds := range datasets {
		if err := t.Add(ds); err != nil {
			return err
		}
	}
	return nil
}

// Images is the sum of all leaf counts.
func (t *DicomTree) Images() int {
	n := 0
	for _, p := range t.data {
		n += p.Count()
	}
	return n
}

// Map applies f to every leaf Dataset in insertion order within a tier.
func (t *DicomTree) Map(f func(*types.Dataset)) {
	for _, uid := range t.order {
		t.data[uid].Map(f)
	}
}

// Trim removes every leaf for which keep is false and returns the count
// removed, propagating deletions upward.
func (t *DicomTree) Trim(keep func(*types.Dataset) bool) int {
	removed := 0
	kept := t.order[:0]
	for _, uid := range t.order {
		removed += t.data[uid].Trim(keep)
		if t.data[uid].Count() == 0 {
			delete(t.data, uid)
			continue
		}
		kept = append(kept, uid)
	}
	t.order = kept
	return removed
}

// Patient returns the PatientTree for patientID, or nil if absent.
func (t *DicomTree) Patient(patientID string) *PatientTree {
	return t.data[patientID]
}

// Patients returns the PatientIDs present, in insertion order.
func (t *DicomTree) Patients() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Discover recursively loads every file under path into the tree. Parse
// failures are either fatal (strict) or skipped with the caller notified
// via onSkip (permissive); onSkip may be nil.
func Discover(path string, strict bool, onSkip func(path string, err error)) (*DicomTree, error) {
	dt := NewDicomTree()
	err := walkDatasets(path, func(filePath string, ds *types.Dataset) error {
		if addErr := dt.Add(ds); addErr != nil {
			if strict {
				return fmt.Errorf("tree: discover %s: %w", filePath, addErr)
			}
			if onSkip != nil {
				onSkip(filePath, addErr)
			}
		}
		return nil
	}, strict, onSkip)
	if err != nil {
		return nil, err
	}
	return dt, nil
}

// requiredTagNames names the tags §3/§4.B require on every inserted
// dataset, for use in error messages elsewhere in the pipeline.
var requiredTagNames = map[tag.Tag]string{
	tag.PatientID:         "PatientID",
	tag.StudyInstanceUID:  "StudyInstanceUID",
	tag.SeriesInstanceUID: "SeriesInstanceUID",
	tag.SOPInstanceUID:    "SOPInstanceUID",
}

// MissingRequiredTags reports which of the tree's four identifying tags ds
// lacks, in a stable order, for use by callers that want to report every
// missing tag rather than fail fast on the first.
func MissingRequiredTags(ds *types.Dataset) []string {
	var missing []string
	for _, tg := range []tag.Tag{tag.PatientID, tag.StudyInstanceUID, tag.SeriesInstanceUID, tag.SOPInstanceUID} {
		if !ds.Has(tg) {
			missing = append(missing, requiredTagNames[tg])
		}
	}
	return missing
}

// String renders a DicomTree the way a developer would expect from a
// debug dump: patient/study/series counts, nothing about pixel data.
func (t *DicomTree) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DicomTree with %d images across %d patients", t.Images(), len(t.order))
	return b.String()
}
