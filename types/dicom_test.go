package types

import (
	"testing"

	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestVRConstants(t *testing.T) {
	tests := []struct {
		name string
		vr   string
		want string
	}{
		{"Application Entity", VR_AE, "AE"},
		{"Person Name", VR_PN, "PN"},
		{"Unique Identifier", VR_UI, "UI"},
		{"Date", VR_DA, "DA"},
		{"Time", VR_TM, "TM"},
		{"Long String", VR_LO, "LO"},
		{"Short String", VR_SH, "SH"},
		{"Code String", VR_CS, "CS"},
		{"Unsigned Short", VR_US, "US"},
		{"Signed Long", VR_SL, "SL"},
		{"Sequence", VR_SQ, "SQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.vr != tt.want {
				t.Errorf("VR constant %s = %q, want %q", tt.name, tt.vr, tt.want)
			}
		})
	}
}

func TestDataset_MustSetAndGetString(t *testing.T) {
	ds := NewDataset()
	ds.MustSet(tag.PatientID, []string{"1502799995"})
	ds.MustSet(tag.PatientName, []string{"Doe^John"})

	got, err := ds.PatientID()
	if err != nil {
		t.Fatalf("PatientID() error = %v", err)
	}
	if got != "1502799995" {
		t.Errorf("PatientID() = %q, want %q", got, "1502799995")
	}

	if !ds.Has(tag.PatientName) {
		t.Error("Has(PatientName) = false, want true")
	}
	if ds.Has(tag.StudyInstanceUID) {
		t.Error("Has(StudyInstanceUID) = true, want false (not set)")
	}
}

func TestDataset_GetStringMissingTag(t *testing.T) {
	ds := NewDataset()
	if _, err := ds.PatientID(); err == nil {
		t.Error("expected error for missing PatientID, got nil")
	}
}

func TestDataset_RequiredIdentityTags(t *testing.T) {
	ds := NewDataset()
	ds.MustSet(tag.PatientID, []string{"1502799995"})
	ds.MustSet(tag.StudyInstanceUID, []string{"1.2.3.4"})
	ds.MustSet(tag.SeriesInstanceUID, []string{"1.2.3.4.5"})
	ds.MustSet(tag.SOPInstanceUID, []string{"1.2.3.4.5.6"})
	ds.MustSet(tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.2"})

	for name, get := range map[string]func() (string, error){
		"PatientID":         ds.PatientID,
		"StudyInstanceUID":  ds.StudyInstanceUID,
		"SeriesInstanceUID": ds.SeriesInstanceUID,
		"SOPInstanceUID":    ds.SOPInstanceUID,
		"SOPClassUID":       ds.SOPClassUID,
	} {
		if v, err := get(); err != nil || v == "" {
			t.Errorf("%s: got (%q, %v), want non-empty value and nil error", name, v, err)
		}
	}
}
