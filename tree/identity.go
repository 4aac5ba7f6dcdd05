package tree

import (
	"fmt"
	"sync"

	"github.com/dicomnode/pipeline/types"
)

// DefaultPrefixSize matches the original implementation's prefixSize=4
// default for replacement identifier suffixes.
const DefaultPrefixSize = 4

// IdentityMapping holds four auxiliary original-to-replacement identifier
// mappings (Patient, Study, Series, SOPInstance) used by the anonymization
// collaborator. Grounded on
// original_source/src/dicomnode/tests/tests_studyTree.py's IdentityMapping
// assertions, the only surviving description of lib.imageTree.IdentityMapping.
type IdentityMapping struct {
	PrefixSize int

	mu              sync.Mutex
	patientMapping  map[string]string
	studyMapping    map[string]string
	seriesMapping   map[string]string
	sopMapping      map[string]string
	nextPatientSeq  int
}

// NewIdentityMapping returns an empty mapping with the default prefix size.
func NewIdentityMapping() *IdentityMapping {
	return &IdentityMapping{
		PrefixSize:     DefaultPrefixSize,
		patientMapping: make(map[string]string),
		studyMapping:   make(map[string]string),
		seriesMapping:  make(map[string]string),
		sopMapping:     make(map[string]string),
	}
}

// AddPatient returns the replacement PatientID for patientID, minting a new
// one on first sight and returning the same value on repeat calls.
func (m *IdentityMapping) AddPatient(patientID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.patientMapping[patientID]; ok {
		return existing
	}
	replacement := fmt.Sprintf("AnonymizedPatientID_%d", m.nextPatientSeq)
	m.nextPatientSeq++
	m.patientMapping[patientID] = replacement
	return replacement
}

// AddStudyUID mints (or returns the existing) replacement for studyUID, a
// fresh types.GenUID value.
func (m *IdentityMapping) AddStudyUID(studyUID string) string {
	return addUID(&m.mu, m.studyMapping, studyUID, "")
}

// AddSeriesUID mints (or returns the existing) replacement for seriesUID.
func (m *IdentityMapping) AddSeriesUID(seriesUID string) string {
	return addUID(&m.mu, m.seriesMapping, seriesUID, "")
}

// AddSOPUID mints (or returns the existing) replacement for sopUID.
func (m *IdentityMapping) AddSOPUID(sopUID string) string {
	return addUID(&m.mu, m.sopMapping, sopUID, "")
}

func addUID(mu *sync.Mutex, table map[string]string, uid, prefix string) string {
	mu.Lock()
	defer mu.Unlock()
	if existing, ok := table[uid]; ok {
		return existing
	}
	replacement := prefix + types.GenUID()
	table[uid] = replacement
	return replacement
}

// Get probes all four mappings in order (Patient, Study, Series, SOP) and
// returns the first hit, or ("", false) if x is mapped nowhere.
func (m *IdentityMapping) Get(x string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.patientMapping[x]; ok {
		return v, true
	}
	if v, ok := m.studyMapping[x]; ok {
		return v, true
	}
	if v, ok := m.seriesMapping[x]; ok {
		return v, true
	}
	if v, ok := m.sopMapping[x]; ok {
		return v, true
	}
	return "", false
}

// FillFromDicomTree walks dt and registers every Patient/Study/Series/SOP
// identifier it finds, so that a subsequent anonymization pass has a
// replacement ready for every identifier the tree actually contains.
func (m *IdentityMapping) FillFromDicomTree(dt *DicomTree) {
	dt.Map(func(ds *types.Dataset) {
		if patientID, err := ds.PatientID(); err == nil && patientID != "" {
			m.AddPatient(patientID)
		}
		if studyUID, err := ds.StudyInstanceUID(); err == nil && studyUID != "" {
			m.AddStudyUID(studyUID)
		}
		if seriesUID, err := ds.SeriesInstanceUID(); err == nil && seriesUID != "" {
			m.AddSeriesUID(seriesUID)
		}
		if sopUID, err := ds.SOPInstanceUID(); err == nil && sopUID != "" {
			m.AddSOPUID(sopUID)
		}
	})
}

// PatientCount, StudyCount, SeriesCount, SOPCount report the size of each
// auxiliary mapping, mainly for logging and tests.
func (m *IdentityMapping) PatientCount() int { return len(m.patientMapping) }
func (m *IdentityMapping) StudyCount() int   { return len(m.studyMapping) }
func (m *IdentityMapping) SeriesCount() int  { return len(m.seriesMapping) }
func (m *IdentityMapping) SOPCount() int     { return len(m.sopMapping) }
