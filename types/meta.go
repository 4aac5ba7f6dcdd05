package types

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dicomnode/pipeline/errors"
)

// ImplementationUIDRoot prefixes every UID this module generates, mirroring
// DICOMNODE_IMPLEMENTATION_UID from the original implementation.
const ImplementationUIDRoot = "1.2.826.0.1.3680043.10.1248"

const implementationClassUID = ImplementationUIDRoot
const implementationVersionName = "dicomnode-pipeline-go"

// GenUID generates a UID under ImplementationUIDRoot, converting a random
// UUID's bytes into a DICOM-legal all-numeric UID component.
func GenUID() string {
	id := uuid.New()
	// A UUID has 128 bits of entropy; the high half keeps 63 bits (at most
	// 19 digits) and the low half is reduced to at most 16 digits, so with
	// the 27-char root the UID stays within DICOM's 64-char limit.
	hi := id[0:8]
	lo := id[8:16]
	return fmt.Sprintf("%s.%d.%d", ImplementationUIDRoot, beUint64(hi), beUint64(lo)%1e16)
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	// Clear the sign bit so the decimal rendering never needs a minus sign
	// and stays within a predictable digit count.
	return v &^ (1 << 63)
}

var validTransferSyntaxes = map[string]bool{
	ImplicitVRLittleEndian: true,
	ExplicitVRLittleEndian: true,
	ExplicitVRBigEndian:    true,
}

// MakeMeta promotes ds to a dataset with a valid file-meta group (0002,xxxx),
// generating a SOPInstanceUID if absent and rejecting transfer syntaxes this
// module does not support - notably Implicit VR Big Endian, which DICOM
// never actually defines as a legal transfer syntax. Grounded on
// dicomnode.lib.dicom.make_meta from the original implementation.
func MakeMeta(ds *Dataset, transferSyntaxUID string) error {
	if !validTransferSyntaxes[transferSyntaxUID] {
		return errors.NewInvalidDataset(0xC000, fmt.Sprintf("unsupported transfer syntax %q", transferSyntaxUID))
	}

	sopClassUID, err := ds.SOPClassUID()
	if err != nil || sopClassUID == "" {
		return errors.NewInvalidDataset(0xB006, "cannot create meta header without SOPClassUID")
	}

	sopInstanceUID, err := ds.SOPInstanceUID()
	if err != nil || sopInstanceUID == "" {
		sopInstanceUID = GenUID()
		if err := ds.Set(tag.SOPInstanceUID, []string{sopInstanceUID}); err != nil {
			return errors.NewInvalidDataset(0xC000, "failed to assign generated SOPInstanceUID")
		}
	}

	metaElements := []struct {
		tag   tag.Tag
		value interface{}
	}{
		{tag.FileMetaInformationVersion, []byte{0x00, 0x01}},
		{tag.MediaStorageSOPClassUID, []string{sopClassUID}},
		{tag.MediaStorageSOPInstanceUID, []string{sopInstanceUID}},
		{tag.TransferSyntaxUID, []string{transferSyntaxUID}},
		{tag.ImplementationClassUID, []string{implementationClassUID}},
		{tag.ImplementationVersionName, []string{implementationVersionName}},
	}

	for _, me := range metaElements {
		if ds.Has(me.tag) {
			continue
		}
		if err := ds.Set(me.tag, me.value); err != nil {
			return errors.NewInvalidDataset(0xC000, fmt.Sprintf("failed to set file-meta element %v: %v", me.tag, err))
		}
	}

	return nil
}
