// Package pipeline implements the patient-keyed pipeline tree (spec
// component D): one slot per PatientID holding a declared set of input.Input
// buffers plus a shared header Dataset, and the read-only InputContainer
// projected from a slot at dispatch time.
package pipeline

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dicomnode/pipeline/errors"
	"github.com/dicomnode/pipeline/input"
	"github.com/dicomnode/pipeline/types"
)

// Accumulator is the per-input accumulator shape a patient slot holds.
// *input.Input satisfies it directly; *historic.Input satisfies it by
// embedding *input.Input and overriding Add, so a historic input can be
// declared and admitted through exactly the same slot machinery as a plain
// one (spec component E).
type Accumulator interface {
	Name() string
	RequiredTags() []tag.Tag
	Add(ds *types.Dataset) (int, error)
	Validate() bool
	Grind() (interface{}, error)
	Clear() error
	Count() int
}

// Declaration names one Input to create per patient slot. By default the
// slot builds a plain input.Input from Config; New overrides that with a
// custom constructor, e.g. historic.New wrapping its own C-MOVE behaviour.
type Declaration struct {
	Name   string
	Config input.Config

	// New, when set, builds this declaration's Accumulator directly and
	// newSlot does not pass Config to input.New; Config.RequiredTags is still
	// read by the node's acceptance check. fsRoot/patientID are the same
	// values newSlot would otherwise pass to input.New.
	New func(fsRoot, patientID string) Accumulator
}

// InputContainer is a read-only view projected from a single patient slot
// at dispatch time: the shared header plus each declared input's ground
// value.
type InputContainer struct {
	Header *types.Dataset
	values map[string]interface{}
}

// Get returns the grind result for the named input.
func (c *InputContainer) Get(name string) (interface{}, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Slot is a detached snapshot of one patient's buffered inputs, returned by
// Tree.Extract. It owns its Input buffers until Release is called.
type Slot struct {
	PatientID string
	Header    *types.Dataset

	inputs map[string]Accumulator
}

// BuildContainer runs every input's grinder and assembles the
// InputContainer the user process function receives.
func (s *Slot) BuildContainer() (*InputContainer, error) {
	values := make(map[string]interface{}, len(s.inputs))
	for name, in := range s.inputs {
		v, err := in.Grind()
		if err != nil {
			return nil, err
		}
		values[name] = v
	}
	return &InputContainer{Header: s.Header, values: values}, nil
}

// Release clears every input's buffered state (and on-disk directory, if
// filesystem-backed).
func (s *Slot) Release() error {
	var first error
	for _, in := range s.inputs {
		if err := in.Clear(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Tree is the patient-keyed pipeline tree. The pipeline node owns the
// Tree exclusively; Inputs are owned by the patient slot.
type Tree struct {
	declarations []Declaration
	fsRoot       string // root_data_directory; "" disables filesystem backing

	mu    sync.Mutex
	slots map[string]*Slot
}

// New returns an empty Tree declaring one Input per entry in declarations.
// fsRoot enables filesystem backing under <fsRoot>/<PatientID>/<input_name>/
// when non-empty.
func New(declarations []Declaration, fsRoot string) *Tree {
	return &Tree{
		declarations: declarations,
		fsRoot:       fsRoot,
		slots:        make(map[string]*Slot),
	}
}

func (t *Tree) newSlot(patientID string) *Slot {
	inputs := make(map[string]Accumulator, len(t.declarations))
	for _, decl := range t.declarations {
		if decl.New != nil {
			inputs[decl.Name] = decl.New(t.fsRoot, patientID)
			continue
		}
		inputs[decl.Name] = input.New(decl.Name, decl.Config, t.fsRoot, patientID)
	}
	return &Slot{PatientID: patientID, inputs: inputs}
}

// Admit finds or creates the PatientID slot and routes ds to every declared
// Input whose required tags are all present on ds. Records the header (the
// first dataset admitted for this patient since its slot was created).
// Returns whether the patient is now ready for dispatch.
//
// t.mu is held for the full admission, including every in.Add: Extract
// removing this same slot for dispatch is what spec §4.G's "arrivals during
// dispatch open a new slot" depends on, and that guarantee only holds if no
// Add can land on a slot between it being read from the map and being
// mutated - so the read, the mutation, and the ready check all happen under
// one critical section.
func (t *Tree) Admit(ds *types.Dataset) (ready bool, patientID string, err error) {
	patientID, err = ds.PatientID()
	if err != nil || patientID == "" {
		return false, "", errors.NewInvalidDataset(0xB007, "dataset missing PatientID")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	slot, ok := t.slots[patientID]
	if !ok {
		slot = t.newSlot(patientID)
		t.slots[patientID] = slot
	}
	if slot.Header == nil {
		slot.Header = ds
	}

	for _, in := range slot.inputs {
		if satisfiesInput(ds, in) {
			if _, addErr := in.Add(ds); addErr != nil {
				return false, patientID, addErr
			}
		}
	}

	return readyLocked(slot), patientID, nil
}

func satisfiesInput(ds *types.Dataset, in Accumulator) bool {
	for _, tg := range in.RequiredTags() {
		if !ds.Has(tg) {
			return false
		}
	}
	return true
}

// Ready reports whether every declared Input for patientID currently
// validates true. A patient with no slot is never ready.
func (t *Tree) Ready(patientID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot, ok := t.slots[patientID]
	if !ok {
		return false
	}
	return readyLocked(slot)
}

func readyLocked(slot *Slot) bool {
	for _, in := range slot.inputs {
		if !in.Validate() {
			return false
		}
	}
	return true
}

// Extract detaches and returns the patientID slot atomically: any
// subsequent Admit for the same PatientID starts a fresh slot. Returns
// false if no slot exists.
func (t *Tree) Extract(patientID string) (*Slot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot, ok := t.slots[patientID]
	if !ok {
		return nil, false
	}
	delete(t.slots, patientID)
	return slot, true
}

// Remove releases patientID's buffered state without dispatching it, and
// if filesystem-backed, deletes the patient directory. Used for external
// eviction.
func (t *Tree) Remove(patientID string) error {
	slot, ok := t.Extract(patientID)
	if !ok {
		return nil
	}
	err := slot.Release()
	if t.fsRoot != "" {
		if rmErr := os.RemoveAll(filepath.Join(t.fsRoot, patientID)); rmErr != nil && err == nil {
			err = errors.NewCouldNotCompleteDIMSEMessage("remove patient directory", rmErr)
		}
	}
	return err
}

// Images is the sum of all leaf counts across every currently buffered
// patient slot.
func (t *Tree) Images() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, slot := range t.slots {
		for _, in := range slot.inputs {
			n += in.Count()
		}
	}
	return n
}

// PatientIDs returns the PatientIDs currently holding a buffered slot.
func (t *Tree) PatientIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.slots))
	for patientID := range t.slots {
		out = append(out, patientID)
	}
	return out
}
