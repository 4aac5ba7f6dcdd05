package tree

import (
	"fmt"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dicomnode/pipeline/types"
)

// BaseAnonymizedPatientName is the default replacement PatientName, mirroring
// the original implementation's BASE_ANONYMIZED_PATIENT_NAME.
const BaseAnonymizedPatientName = "Anonymized_PatientName"

// AnonymizeDataset returns a function that anonymizes a single Dataset in
// place against mapping: the PatientID, PatientName and StudyID are
// replaced deterministically, and StudyInstanceUID, SeriesInstanceUID and
// SOPInstanceUID are substituted when mapping holds a replacement for their
// value; other UI-valued tags are left unchanged.
//
// Grounded on original_source/src/dicomnode/lib/anonymization.py's
// anonymize_dataset. The original recurses into sequences (VR "SQ") and
// file-meta; this port operates over the flat element list the
// suyashkumar/dicom library exposes, which is sufficient for the non-nested
// identifying tags the pipeline actually buffers.
func AnonymizeDataset(mapping *IdentityMapping, patientName string, studyID string) func(*types.Dataset) {
	if patientName == "" {
		patientName = BaseAnonymizedPatientName
	}

	return func(ds *types.Dataset) {
		patientID, err := ds.PatientID()
		if err != nil || patientID == "" {
			return
		}
		newPatientID := mapping.AddPatient(patientID)
		suffix := newPatientID
		if len(suffix) > mapping.PrefixSize {
			suffix = suffix[len(suffix)-mapping.PrefixSize:]
		}

		_ = ds.Replace(tag.PatientID, []string{newPatientID})
		_ = ds.Replace(tag.PatientName, []string{fmt.Sprintf("%s_%s", patientName, suffix)})
		if studyID != "" {
			_ = ds.Replace(tag.StudyID, []string{fmt.Sprintf("%s_%s", studyID, suffix)})
		}

		for _, tg := range []tag.Tag{tag.StudyInstanceUID, tag.SeriesInstanceUID, tag.SOPInstanceUID} {
			value, err := ds.GetString(tg)
			if err != nil || value == "" {
				continue
			}
			if replacement, ok := mapping.Get(value); ok {
				_ = ds.Replace(tg, []string{replacement})
			}
		}
	}
}
