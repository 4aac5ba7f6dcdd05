package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dicomnode/pipeline/types"
)

func newTestDataset(t *testing.T, patientID, studyUID, seriesUID, sopUID string) *types.Dataset {
	t.Helper()
	ds := types.NewDataset()
	ds.MustSet(tag.PatientID, []string{patientID})
	ds.MustSet(tag.StudyInstanceUID, []string{studyUID})
	ds.MustSet(tag.SeriesInstanceUID, []string{seriesUID})
	ds.MustSet(tag.SOPInstanceUID, []string{sopUID})
	return ds
}

func TestDicomTree_AddAndCount(t *testing.T) {
	dt := NewDicomTree()
	ds := newTestDataset(t, "P1", "ST1", "SE1", "SOP1")

	require.NoError(t, dt.Add(ds))
	assert.Equal(t, 1, dt.Images())

	patient := dt.Patient("P1")
	require.NotNil(t, patient)
	study := patient.Study("ST1")
	require.NotNil(t, study)
	series := study.Series("SE1")
	require.NotNil(t, series)
	assert.Equal(t, 1, series.Count())
}

func TestDicomTree_CountConsistency(t *testing.T) {
	dt := NewDicomTree()
	datasets := []*types.Dataset{
		newTestDataset(t, "P1", "ST1", "SE1", "SOP1"),
		newTestDataset(t, "P1", "ST1", "SE1", "SOP2"),
		newTestDataset(t, "P1", "ST1", "SE2", "SOP3"),
		newTestDataset(t, "P2", "ST2", "SE3", "SOP4"),
	}
	require.NoError(t, dt.AddAll(datasets))

	assert.Equal(t, 4, dt.Images())
	assert.Equal(t, 3, dt.Patient("P1").Count())
	assert.Equal(t, 1, dt.Patient("P2").Count())
}

func TestDicomTree_IdempotentInsert(t *testing.T) {
	dt := NewDicomTree()
	ds := newTestDataset(t, "P1", "ST1", "SE1", "SOP1")

	require.NoError(t, dt.Add(ds))
	require.NoError(t, dt.Add(ds))

	assert.Equal(t, 1, dt.Images())
}

func TestDicomTree_AddMissingTag(t *testing.T) {
	dt := NewDicomTree()
	empty := types.NewDataset()

	err := dt.Add(empty)
	require.Error(t, err)
	assert.Equal(t, 0, dt.Images())
}

func TestDicomTree_Map(t *testing.T) {
	dt := NewDicomTree()
	require.NoError(t, dt.AddAll([]*types.Dataset{
		newTestDataset(t, "P1", "ST1", "SE1", "SOP1"),
		newTestDataset(t, "P1", "ST1", "SE1", "SOP2"),
	}))

	var seen []string
	dt.Map(func(ds *types.Dataset) {
		uid, err := ds.SOPInstanceUID()
		require.NoError(t, err)
		seen = append(seen, uid)
	})

	assert.Equal(t, []string{"SOP1", "SOP2"}, seen)
}

func TestDicomTree_Trim(t *testing.T) {
	dt := NewDicomTree()
	datasets := []*types.Dataset{
		newTestDataset(t, "P1", "ST1", "SE1", "SOP1"),
		newTestDataset(t, "P1", "ST1", "SE1", "SOP2"),
		newTestDataset(t, "P2", "ST2", "SE2", "SOP3"),
	}
	require.NoError(t, dt.AddAll(datasets))

	removed := dt.Trim(func(ds *types.Dataset) bool {
		patientID, _ := ds.PatientID()
		return patientID == "P1"
	})

	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, dt.Images())
	assert.Nil(t, dt.Patient("P2"))
}

func TestDicomTree_TrimRemovesEmptyInteriorNodes(t *testing.T) {
	dt := NewDicomTree()
	require.NoError(t, dt.Add(newTestDataset(t, "P1", "ST1", "SE1", "SOP1")))

	removed := dt.Trim(func(ds *types.Dataset) bool { return false })

	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, dt.Images())
	assert.Nil(t, dt.Patient("P1"))
}

func TestIdentityMapping_Get(t *testing.T) {
	im := NewIdentityMapping()
	replacement := im.AddPatient("original")

	got, ok := im.Get("original")
	require.True(t, ok)
	assert.Equal(t, replacement, got)

	_, ok = im.Get("unmapped")
	assert.False(t, ok)
}

func TestIdentityMapping_AddPatientIsIdempotent(t *testing.T) {
	im := NewIdentityMapping()
	first := im.AddPatient("P1")
	second := im.AddPatient("P1")
	assert.Equal(t, first, second)
}

func TestIdentityMapping_FillFromDicomTree(t *testing.T) {
	dt := NewDicomTree()
	require.NoError(t, dt.AddAll([]*types.Dataset{
		newTestDataset(t, "P1", "ST1", "SE1", "SOP1"),
		newTestDataset(t, "P2", "ST2", "SE2", "SOP2"),
	}))

	im := NewIdentityMapping()
	im.FillFromDicomTree(dt)

	assert.Equal(t, 2, im.PatientCount())
	assert.Equal(t, 2, im.StudyCount())
	assert.Equal(t, 2, im.SeriesCount())
	assert.Equal(t, 2, im.SOPCount())
}
