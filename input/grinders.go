package input

import (
	"fmt"
	"math"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dicomnode/pipeline/errors"
	"github.com/dicomnode/pipeline/tree"
	"github.com/dicomnode/pipeline/types"
)

// Grinder collapses a restartable sequence of Datasets into a user-domain
// value. A plain slice is restartable by construction, which resolves the
// spec's design note that grinders must not silently re-iterate a
// single-pass stream: every grinder here receives the same []*types.Dataset
// and may range over it as many times as it needs.
//
// Grounded on original_source/src/dicomnode/lib/grinders.py.
type Grinder func(datasets []*types.Dataset) (interface{}, error)

// IdentityGrinder returns datasets unchanged.
func IdentityGrinder(datasets []*types.Dataset) (interface{}, error) {
	return datasets, nil
}

// ListGrinder returns a defensive copy of datasets as a []*types.Dataset.
func ListGrinder(datasets []*types.Dataset) (interface{}, error) {
	out := make([]*types.Dataset, len(datasets))
	copy(out, datasets)
	return out, nil
}

// TreeGrinder builds a *tree.DicomTree from datasets.
func TreeGrinder(datasets []*types.Dataset) (interface{}, error) {
	dt := tree.NewDicomTree()
	if err := dt.AddAll(datasets); err != nil {
		return nil, err
	}
	return dt, nil
}

// TagGrinder returns a Grinder that extracts a single tag's first string
// value from each dataset, mirroring the original's get_tag meta-grinder.
func TagGrinder(tg tag.Tag) Grinder {
	return func(datasets []*types.Dataset) (interface{}, error) {
		values := make([]string, len(datasets))
		for i, ds := range datasets {
			v, err := ds.GetString(tg)
			if err != nil {
				values[i] = ""
				continue
			}
			values[i] = v
		}
		return values, nil
	}
}

// ManyGrinder runs every grinder in grinders over the same datasets slice
// and returns their results as a []interface{} in argument order.
//
// Grounded on original_source/src/dicomnode/lib/grinders.py's
// many_meta_grinder.
func ManyGrinder(grinders ...Grinder) Grinder {
	return func(datasets []*types.Dataset) (interface{}, error) {
		results := make([]interface{}, len(grinders))
		for i, g := range grinders {
			v, err := g(datasets)
			if err != nil {
				return nil, fmt.Errorf("input: many-grinder element %d: %w", i, err)
			}
			results[i] = v
		}
		return results, nil
	}
}

// PixelArray is a 3-D stack of pixel data - one frame per dataset - whose
// element type is chosen from the first dataset's BitsAllocated,
// PixelRepresentation, and the presence of the floating-point pixel-data
// tags. Exactly one of the typed slices is populated.
type PixelArray struct {
	Frames, Rows, Columns int

	Int16   []int16
	UInt16  []uint16
	Float32 []float32
	Float64 []float64
}

// NumpyGrinder builds a PixelArray from datasets, the Go analogue of the
// original's numpy-array grinder. All datasets are assumed to share Rows/
// Columns/BitsAllocated/PixelRepresentation with the first.
func NumpyGrinder(datasets []*types.Dataset) (interface{}, error) {
	if len(datasets) == 0 {
		return &PixelArray{}, nil
	}

	first := datasets[0]
	rows, err := requiredInt(first, tag.Rows)
	if err != nil {
		return nil, err
	}
	columns, err := requiredInt(first, tag.Columns)
	if err != nil {
		return nil, err
	}
	bitsAllocated, err := requiredInt(first, tag.BitsAllocated)
	if err != nil {
		return nil, err
	}
	pixelRepresentation, _ := requiredInt(first, tag.PixelRepresentation)

	arr := &PixelArray{Frames: len(datasets), Rows: rows, Columns: columns}
	frameSize := rows * columns

	switch {
	case first.Has(tag.FloatPixelData):
		arr.Float32 = make([]float32, 0, frameSize*len(datasets))
	case first.Has(tag.DoubleFloatPixelData):
		arr.Float64 = make([]float64, 0, frameSize*len(datasets))
	case bitsAllocated > 8 && pixelRepresentation == 1:
		arr.Int16 = make([]int16, 0, frameSize*len(datasets))
	default:
		arr.UInt16 = make([]uint16, 0, frameSize*len(datasets))
	}

	for _, ds := range datasets {
		elem, err := ds.Find(tag.PixelData)
		if err != nil {
			return nil, errors.NewInvalidDataset(0xC000, "dataset missing PixelData")
		}
		raw, ok := elem.Value.GetValue().([]byte)
		if !ok {
			return nil, errors.NewInvalidDataset(0xC000, "PixelData is not a raw byte stream")
		}

		switch {
		case arr.Float32 != nil:
			arr.Float32 = append(arr.Float32, decodeFloat32(raw)...)
		case arr.Float64 != nil:
			arr.Float64 = append(arr.Float64, decodeFloat64(raw)...)
		case arr.Int16 != nil:
			arr.Int16 = append(arr.Int16, decodeInt16(raw)...)
		default:
			arr.UInt16 = append(arr.UInt16, decodeUint16(raw)...)
		}
	}

	return arr, nil
}

func requiredInt(ds *types.Dataset, tg tag.Tag) (int, error) {
	s, err := ds.GetString(tg)
	if err != nil {
		return 0, errors.NewInvalidDataset(0xB006, fmt.Sprintf("dataset missing tag %v required for numpy grinder", tg))
	}
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, errors.NewInvalidDataset(0xC000, fmt.Sprintf("tag %v is not numeric", tg))
	}
	return v, nil
}

func decodeUint16(raw []byte) []uint16 {
	out := make([]uint16, len(raw)/2)
	for i := range out {
		out[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return out
}

func decodeInt16(raw []byte) []int16 {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}
	return out
}

func decodeFloat32(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		bits := uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 | uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func decodeFloat64(raw []byte) []float64 {
	out := make([]float64, len(raw)/8)
	for i := range out {
		var bits uint64
		for b := 0; b < 8; b++ {
			bits |= uint64(raw[8*i+b]) << (8 * b)
		}
		out[i] = math.Float64frombits(bits)
	}
	return out
}
