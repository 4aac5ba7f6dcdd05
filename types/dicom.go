// Package types contains all DICOM-related type definitions
package types

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// VR (Value Representation) constants for DICOM data elements
const (
	VR_AE = "AE" // Application Entity
	VR_AS = "AS" // Age String
	VR_AT = "AT" // Attribute Tag
	VR_CS = "CS" // Code String
	VR_DA = "DA" // Date
	VR_DS = "DS" // Decimal String
	VR_DT = "DT" // Date Time
	VR_FL = "FL" // Floating Point Single
	VR_FD = "FD" // Floating Point Double
	VR_IS = "IS" // Integer String
	VR_LO = "LO" // Long String
	VR_LT = "LT" // Long Text
	VR_OB = "OB" // Other Byte
	VR_OD = "OD" // Other Double
	VR_OF = "OF" // Other Float
	VR_OL = "OL" // Other Long
	VR_OV = "OV" // Other Very Long
	VR_OW = "OW" // Other Word
	VR_PN = "PN" // Person Name
	VR_SH = "SH" // Short String
	VR_SL = "SL" // Signed Long
	VR_SQ = "SQ" // Sequence of Items
	VR_SS = "SS" // Signed Short
	VR_ST = "ST" // Short Text
	VR_SV = "SV" // Signed Very Long
	VR_TM = "TM" // Time
	VR_UC = "UC" // Unlimited Characters
	VR_UI = "UI" // Unique Identifier
	VR_UL = "UL" // Unsigned Long
	VR_UN = "UN" // Unknown
	VR_UR = "UR" // Universal Resource
	VR_US = "US" // Unsigned Short
	VR_UT = "UT" // Unlimited Text
	VR_UV = "UV" // Unsigned Very Long
)

// Tag is a re-export of the suyashkumar/dicom tag package's Tag, so callers
// in this module never need to import it directly for the common case.
type Tag = tag.Tag

// Dataset wraps github.com/suyashkumar/dicom's Dataset with the small set of
// typed accessors the pipeline needs (required-tag checks, string/UID
// lookups, element construction). The wire codec itself - Part 10 parsing,
// VR inspection, transfer syntax handling - is left entirely to the
// suyashkumar/dicom library; this type never reimplements it.
type Dataset struct {
	Inner dicom.Dataset
}

// NewDataset returns an empty Dataset ready to accept elements.
func NewDataset() *Dataset {
	return &Dataset{Inner: dicom.Dataset{Elements: []*dicom.Element{}}}
}

// WrapDataset adapts a dicom.Dataset (as returned by dicom.Parse/ParseFile)
// into the pipeline's Dataset type.
func WrapDataset(ds dicom.Dataset) *Dataset {
	return &Dataset{Inner: ds}
}

// Find returns the element for tg, or an error if absent.
func (d *Dataset) Find(tg tag.Tag) (*dicom.Element, error) {
	return d.Inner.FindElementByTag(tg)
}

// Has reports whether tg is present in the dataset.
func (d *Dataset) Has(tg tag.Tag) bool {
	_, err := d.Inner.FindElementByTag(tg)
	return err == nil
}

// GetString returns the first string value of tg.
func (d *Dataset) GetString(tg tag.Tag) (string, error) {
	values, err := d.GetStrings(tg)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", fmt.Errorf("types: tag %v has no values", tg)
	}
	return values[0], nil
}

// GetStrings returns all string values of tg.
func (d *Dataset) GetStrings(tg tag.Tag) ([]string, error) {
	elem, err := d.Inner.FindElementByTag(tg)
	if err != nil {
		return nil, fmt.Errorf("types: tag %v not found: %w", tg, err)
	}
	values, ok := elem.Value.GetValue().([]string)
	if !ok {
		return nil, fmt.Errorf("types: tag %v is not string-valued", tg)
	}
	return values, nil
}

// Set builds an element for tg/value and appends it to the dataset.
func (d *Dataset) Set(tg tag.Tag, value interface{}) error {
	elem, err := dicom.NewElement(tg, value)
	if err != nil {
		return fmt.Errorf("types: failed to build element %v: %w", tg, err)
	}
	d.Inner.Elements = append(d.Inner.Elements, elem)
	return nil
}

// Replace overwrites the value of tg's element in place, or appends a new
// element if tg is absent.
func (d *Dataset) Replace(tg tag.Tag, value interface{}) error {
	elem, err := dicom.NewElement(tg, value)
	if err != nil {
		return fmt.Errorf("types: failed to build element %v: %w", tg, err)
	}
	for i, existing := range d.Inner.Elements {
		if existing.Tag == tg {
			d.Inner.Elements[i] = elem
			return nil
		}
	}
	d.Inner.Elements = append(d.Inner.Elements, elem)
	return nil
}

// MustSet sets tg to value, panicking on a malformed value - intended for
// test fixtures and synthetic dataset construction where the value is
// statically known to be well-formed.
func (d *Dataset) MustSet(tg tag.Tag, value interface{}) *Dataset {
	if err := d.Set(tg, value); err != nil {
		panic(err)
	}
	return d
}

// PatientID returns the dataset's (0010,0020) value.
func (d *Dataset) PatientID() (string, error) { return d.GetString(tag.PatientID) }

// StudyInstanceUID returns the dataset's (0020,000D) value.
func (d *Dataset) StudyInstanceUID() (string, error) { return d.GetString(tag.StudyInstanceUID) }

// SeriesInstanceUID returns the dataset's (0020,000E) value.
func (d *Dataset) SeriesInstanceUID() (string, error) { return d.GetString(tag.SeriesInstanceUID) }

// SOPInstanceUID returns the dataset's (0008,0018) value.
func (d *Dataset) SOPInstanceUID() (string, error) { return d.GetString(tag.SOPInstanceUID) }

// SOPClassUID returns the dataset's (0008,0016) value.
func (d *Dataset) SOPClassUID() (string, error) { return d.GetString(tag.SOPClassUID) }

// EncodeBytes serialises the dataset with dicom.Write, the same codec
// input.Input uses for its on-disk instances. The DIMSE client sends the
// result as a C-STORE data set payload.
func (d *Dataset) EncodeBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := dicom.Write(&buf, d.Inner); err != nil {
		return nil, fmt.Errorf("types: failed to encode dataset: %w", err)
	}
	return buf.Bytes(), nil
}

// trimUIDPadding strips the null/space padding DICOM uses to keep UIDs at
// even length on the wire.
func trimUIDPadding(s string) string {
	return strings.TrimRight(s, "\x00 ")
}
