package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dicomnode/pipeline/input"
	"github.com/dicomnode/pipeline/types"
)

func newDataset(t *testing.T, patientID, sopInstanceUID string) *types.Dataset {
	t.Helper()
	ds := types.NewDataset()
	ds.MustSet(tag.PatientID, []string{patientID})
	ds.MustSet(tag.StudyInstanceUID, []string{"ST1"})
	ds.MustSet(tag.SeriesInstanceUID, []string{"SE1"})
	ds.MustSet(tag.SOPInstanceUID, []string{sopInstanceUID})
	ds.MustSet(tag.PatientSex, []string{"M"})
	return ds
}

func testDeclarations() []Declaration {
	return []Declaration{
		{Name: "main", Config: input.Config{RequiredTags: []tag.Tag{tag.PatientSex}}},
	}
}

func TestTree_AdmitAndReady(t *testing.T) {
	pt := New(testDeclarations(), "")

	ready, patientID, err := pt.Admit(newDataset(t, "P1", "SOP1"))
	require.NoError(t, err)
	assert.Equal(t, "P1", patientID)
	assert.True(t, ready) // default Validate: non-empty => ready
}

func TestTree_AdmitMissingPatientID(t *testing.T) {
	pt := New(testDeclarations(), "")
	empty := types.NewDataset()

	_, _, err := pt.Admit(empty)
	require.Error(t, err)
}

func TestTree_Extract_StartsFreshSlot(t *testing.T) {
	pt := New(testDeclarations(), "")
	_, _, err := pt.Admit(newDataset(t, "P1", "SOP1"))
	require.NoError(t, err)

	slot, ok := pt.Extract("P1")
	require.True(t, ok)
	assert.Equal(t, "P1", slot.PatientID)

	assert.False(t, pt.Ready("P1"))
	assert.Equal(t, 0, pt.Images())

	_, _, err = pt.Admit(newDataset(t, "P1", "SOP2"))
	require.NoError(t, err)
	assert.Equal(t, 1, pt.Images())
}

func TestTree_SlotIsolation(t *testing.T) {
	pt := New(testDeclarations(), "")
	_, _, err := pt.Admit(newDataset(t, "A", "SOP1"))
	require.NoError(t, err)
	_, _, err = pt.Admit(newDataset(t, "B", "SOP2"))
	require.NoError(t, err)

	slotA, ok := pt.Extract("A")
	require.True(t, ok)

	_, _, err = pt.Admit(newDataset(t, "B", "SOP3"))
	require.NoError(t, err)

	containerA, err := slotA.BuildContainer()
	require.NoError(t, err)
	datasetsA, ok := containerA.Get("main")
	require.True(t, ok)
	list, ok := datasetsA.([]*types.Dataset)
	require.True(t, ok)
	assert.Len(t, list, 1)

	assert.True(t, pt.Ready("B"))
}

func TestTree_ImagesConsistency(t *testing.T) {
	pt := New(testDeclarations(), "")
	for i := 0; i < 3; i++ {
		_, _, err := pt.Admit(newDataset(t, "P1", string(rune('A'+i))))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, pt.Images())
}

func TestTree_Remove_FilesystemBacked(t *testing.T) {
	root := t.TempDir()
	pt := New(testDeclarations(), root)

	_, _, err := pt.Admit(newDataset(t, "P1", "SOP1"))
	require.NoError(t, err)

	require.NoError(t, pt.Remove("P1"))
	assert.NoDirExists(t, filepath.Join(root, "P1"))
	assert.Equal(t, 0, pt.Images())
}
