package tree

import (
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dicomnode/pipeline/errors"
	"github.com/dicomnode/pipeline/types"
)

// Position is a patient-space x,y,z coordinate, in millimetres.
type Position [3]float64

// ExtrapolatePositions extrapolates `slices` image positions from an
// initial position along the series' slice-normal vector, assuming even
// slice thickness throughout the series. Useful for factory-style grinders
// synthesizing a derived series that needs ImagePositionPatient values for
// slices that were never acquired.
//
// Grounded on
// original_source/src/dicomnode/lib/dicom.py's extrapolate_image_position_patient.
func ExtrapolatePositions(
	sliceThickness float64,
	orientation int,
	initialPosition Position,
	imageOrientation [6]float64,
	imageNumber int,
	slices int,
) []Position {
	cross := [3]float64{
		imageOrientation[1]*imageOrientation[5] - imageOrientation[2]*imageOrientation[4],
		imageOrientation[2]*imageOrientation[3] - imageOrientation[0]*imageOrientation[5],
		imageOrientation[0]*imageOrientation[4] - imageOrientation[1]*imageOrientation[3],
	}
	scale := sliceThickness * float64(orientation)
	for i := range cross {
		cross[i] *= scale
	}

	positions := make([]Position, 0, slices)
	for sliceNum := 1; sliceNum <= slices; sliceNum++ {
		offset := float64(sliceNum - imageNumber)
		var pos Position
		for i := 0; i < 3; i++ {
			pos[i] = initialPosition[i] + offset*cross[i]
		}
		positions = append(positions, pos)
	}
	return positions
}

// ExtrapolatePositionsFromDataset extracts SliceThickness, PatientPosition,
// InstanceNumber, ImagePositionPatient and ImageOrientationPatient from ds
// and delegates to ExtrapolatePositions.
//
// Grounded on the same file's
// extrapolate_image_position_patient_dataset wrapper.
func ExtrapolatePositionsFromDataset(ds *types.Dataset, slices int) ([]Position, error) {
	required := []tag.Tag{
		tag.SliceThickness,
		tag.PatientPosition,
		tag.InstanceNumber,
		tag.ImagePositionPatient,
		tag.ImageOrientationPatient,
	}
	for _, tg := range required {
		if !ds.Has(tg) {
			return nil, errors.NewInvalidDataset(0xC000, "dataset missing tag required for position extrapolation")
		}
	}

	orientationValues, err := floatValues(ds, tag.ImageOrientationPatient, 6)
	if err != nil {
		return nil, err
	}
	var imageOrientation [6]float64
	copy(imageOrientation[:], orientationValues)

	positionValues, err := floatValues(ds, tag.ImagePositionPatient, 3)
	if err != nil {
		return nil, err
	}
	var initialPosition Position
	copy(initialPosition[:], positionValues)

	patientPosition, err := ds.GetString(tag.PatientPosition)
	if err != nil {
		return nil, errors.NewInvalidDataset(0xC000, "dataset missing PatientPosition")
	}
	orientation := 1
	if strings.HasPrefix(patientPosition, "HF") {
		orientation = -1
	}

	sliceThickness, err := floatValue(ds, tag.SliceThickness)
	if err != nil {
		return nil, err
	}
	instanceNumber, err := intValue(ds, tag.InstanceNumber)
	if err != nil {
		return nil, err
	}

	return ExtrapolatePositions(sliceThickness, orientation, initialPosition, imageOrientation, instanceNumber, slices), nil
}

func floatValues(ds *types.Dataset, tg tag.Tag, want int) ([]float64, error) {
	strs, err := ds.GetStrings(tg)
	if err != nil || len(strs) != want {
		return nil, errors.NewInvalidDataset(0xC000, "tag has unexpected value multiplicity")
	}
	out := make([]float64, want)
	for i, s := range strs {
		v, perr := parseFloat(s)
		if perr != nil {
			return nil, errors.NewInvalidDataset(0xC000, "tag has non-numeric value")
		}
		out[i] = v
	}
	return out, nil
}

func floatValue(ds *types.Dataset, tg tag.Tag) (float64, error) {
	s, err := ds.GetString(tg)
	if err != nil {
		return 0, errors.NewInvalidDataset(0xC000, "tag missing")
	}
	return parseFloat(s)
}

func intValue(ds *types.Dataset, tg tag.Tag) (int, error) {
	s, err := ds.GetString(tg)
	if err != nil {
		return 0, errors.NewInvalidDataset(0xC000, "tag missing")
	}
	v, perr := parseFloat(s)
	if perr != nil {
		return 0, errors.NewInvalidDataset(0xC000, "tag has non-numeric value")
	}
	return int(v), nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
