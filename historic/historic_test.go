package historic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dicomnode/pipeline/client"
	"github.com/dicomnode/pipeline/types"
)

func newInstance(t *testing.T, patientID, sopInstanceUID string) *types.Dataset {
	t.Helper()
	ds := types.NewDataset()
	ds.MustSet(tag.PatientID, []string{patientID})
	ds.MustSet(tag.StudyInstanceUID, []string{"ST1"})
	ds.MustSet(tag.SeriesInstanceUID, []string{"SE1"})
	ds.MustSet(tag.SOPInstanceUID, []string{sopInstanceUID})
	return ds
}

// unreachableConfig points at a port nothing listens on, so issueMove fails
// fast with a connection error - enough to exercise the at-most-once gate
// without needing a full association handshake double.
func unreachableConfig() Config {
	return Config{
		Address:     client.Address{Host: "127.0.0.1", Port: 1, AETitle: "REMOTE"},
		SourceAE:    "LOCAL",
		SOPClassUID: "1.2.840.10008.5.1.4.1.2.2.2",
	}
}

func TestHistoricInput_IssuesMoveOnFirstAdd(t *testing.T) {
	h := New("historic", unreachableConfig(), "", "P1")

	_, err := h.Add(newInstance(t, "P1", "SOP1"))
	require.NoError(t, err)
	assert.True(t, h.MoveIssued())
}

func TestHistoricInput_AtMostOneMovePerLifetime(t *testing.T) {
	h := New("historic", unreachableConfig(), "", "P1")

	_, err := h.Add(newInstance(t, "P1", "SOP1"))
	require.NoError(t, err)
	assert.True(t, h.MoveIssued())

	// second add (simulating the C-MOVE's own fetched objects arriving back)
	// must not re-trigger the gate
	_, err = h.Add(newInstance(t, "P1", "SOP2"))
	require.NoError(t, err)
	assert.True(t, h.MoveIssued())
	assert.Equal(t, 2, h.Count())
}

func TestHistoricInput_InvalidUntilUnderlyingValidates(t *testing.T) {
	h := New("historic", Config{
		Address:     unreachableConfig().Address,
		SourceAE:    "LOCAL",
		SOPClassUID: "1.2.840.10008.5.1.4.1.2.2.2",
	}, "", "P1")

	assert.False(t, h.Validate())
	_, err := h.Add(newInstance(t, "P1", "SOP1"))
	require.NoError(t, err)
	assert.True(t, h.Validate()) // default predicate: non-empty

	// give the background move a moment to fail against the unreachable
	// address, and confirm the failure is observable without panicking
	// the caller.
	require.Eventually(t, func() bool {
		return h.MoveError() != nil
	}, time.Second, 10*time.Millisecond)
}
