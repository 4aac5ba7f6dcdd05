// Command node runs an averaging pipeline node: it accumulates every
// instance of a series, grinds them into a pixel stack, averages across
// frames, and writes the result to disk. The Go analogue of
// original_source/examples/averageNode.py.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dicomnode/pipeline/config"
	"github.com/dicomnode/pipeline/input"
	"github.com/dicomnode/pipeline/internal/ilog"
	"github.com/dicomnode/pipeline/node"
	"github.com/dicomnode/pipeline/output"
	"github.com/dicomnode/pipeline/pipeline"
	"github.com/dicomnode/pipeline/types"
)

const seriesInput = "series"

func seriesDeclaration() pipeline.Declaration {
	return pipeline.Declaration{
		Name: seriesInput,
		Config: input.Config{
			RequiredTags: []tag.Tag{tag.SeriesInstanceUID, tag.Rows, tag.Columns, tag.PixelData},
			Grinder:      input.NumpyGrinder,
			Validate: func(datasets []*types.Dataset) bool {
				return len(datasets) > 0
			},
		},
	}
}

// averageSeries averages a *input.PixelArray across its Frames dimension,
// keeping whichever typed slice the grinder populated.
func averageSeries(arr *input.PixelArray) (*input.PixelArray, error) {
	if arr.Frames == 0 {
		return nil, fmt.Errorf("node: no frames to average")
	}
	frameSize := arr.Rows * arr.Columns
	out := &input.PixelArray{Frames: 1, Rows: arr.Rows, Columns: arr.Columns}

	switch {
	case arr.UInt16 != nil:
		out.UInt16 = averageUint16(arr.UInt16, arr.Frames, frameSize)
	case arr.Int16 != nil:
		out.Int16 = averageInt16(arr.Int16, arr.Frames, frameSize)
	case arr.Float32 != nil:
		out.Float32 = averageFloat32(arr.Float32, arr.Frames, frameSize)
	case arr.Float64 != nil:
		out.Float64 = averageFloat64(arr.Float64, arr.Frames, frameSize)
	default:
		return nil, fmt.Errorf("node: pixel array has no populated frames")
	}
	return out, nil
}

func averageUint16(data []uint16, frames, frameSize int) []uint16 {
	sums := make([]uint64, frameSize)
	for f := 0; f < frames; f++ {
		for i := 0; i < frameSize; i++ {
			sums[i] += uint64(data[f*frameSize+i])
		}
	}
	out := make([]uint16, frameSize)
	for i, s := range sums {
		out[i] = uint16(s / uint64(frames))
	}
	return out
}

func averageInt16(data []int16, frames, frameSize int) []int16 {
	sums := make([]int64, frameSize)
	for f := 0; f < frames; f++ {
		for i := 0; i < frameSize; i++ {
			sums[i] += int64(data[f*frameSize+i])
		}
	}
	out := make([]int16, frameSize)
	for i, s := range sums {
		out[i] = int16(s / int64(frames))
	}
	return out
}

func averageFloat32(data []float32, frames, frameSize int) []float32 {
	sums := make([]float64, frameSize)
	for f := 0; f < frames; f++ {
		for i := 0; i < frameSize; i++ {
			sums[i] += float64(data[f*frameSize+i])
		}
	}
	out := make([]float32, frameSize)
	for i, s := range sums {
		out[i] = float32(s / float64(frames))
	}
	return out
}

func averageFloat64(data []float64, frames, frameSize int) []float64 {
	sums := make([]float64, frameSize)
	for f := 0; f < frames; f++ {
		for i := 0; i < frameSize; i++ {
			sums[i] += data[f*frameSize+i]
		}
	}
	out := make([]float64, frameSize)
	for i, s := range sums {
		out[i] = s / float64(frames)
	}
	return out
}

func pixelBytes(arr *input.PixelArray) []byte {
	switch {
	case arr.UInt16 != nil:
		return encodeUint16(arr.UInt16)
	case arr.Int16 != nil:
		return encodeUint16Bits(arr.Int16)
	default:
		return nil
	}
}

func encodeUint16(data []uint16) []byte {
	out := make([]byte, len(data)*2)
	for i, v := range data {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

func encodeUint16Bits(data []int16) []byte {
	out := make([]byte, len(data)*2)
	for i, v := range data {
		out[2*i] = byte(uint16(v))
		out[2*i+1] = byte(uint16(v) >> 8)
	}
	return out
}

func process(outputPath string) node.ProcessFunc {
	return func(c *pipeline.InputContainer) (output.Output, error) {
		ground, ok := c.Get(seriesInput)
		if !ok {
			return nil, fmt.Errorf("node: series input missing from container")
		}
		arr, ok := ground.(*input.PixelArray)
		if !ok {
			return nil, fmt.Errorf("node: series input did not grind to a PixelArray")
		}

		averaged, err := averageSeries(arr)
		if err != nil {
			return nil, err
		}

		series := c.Header
		if series == nil {
			return nil, fmt.Errorf("node: missing header dataset")
		}
		if err := series.Replace(tag.PixelData, pixelBytes(averaged)); err != nil {
			return nil, fmt.Errorf("node: set averaged pixel data: %w", err)
		}
		if err := series.Set(tag.SeriesDescription, []string{"Averaged Image"}); err != nil {
			return nil, fmt.Errorf("node: set series description: %w", err)
		}
		if err := types.MakeMeta(series, types.ExplicitVRLittleEndian); err != nil {
			return nil, fmt.Errorf("node: make meta: %w", err)
		}

		sopInstanceUID, _ := series.SOPInstanceUID()
		path := filepath.Join(outputPath, sopInstanceUID+".dcm")
		return &output.FileOutput{
			Targets: []output.FileTarget{{Path: path, Value: series}},
			Logger:  slog.Default(),
		}, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "node: load config:", err)
		os.Exit(1)
	}

	logger, err := ilog.New(ilog.Config{Level: cfg.LogLevel, Path: cfg.LogPath, DisableWireLogger: cfg.DisableWireLogger})
	if err != nil {
		fmt.Fprintln(os.Stderr, "node: configure logging:", err)
		os.Exit(1)
	}

	outputPath := os.Getenv("AVERAGE_NODE_OUTPUT_PATH")
	if outputPath == "" {
		outputPath = os.TempDir()
	}

	n := node.New(cfg.AETitle, []pipeline.Declaration{seriesDeclaration()}, process(outputPath),
		node.WithRequireCallingAET(cfg.RequireCallingAET...),
		node.WithRootDataDirectory(cfg.RootDataDirectory),
		node.WithProcessingDirectory(cfg.ProcessingDirectory),
		node.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr := os.Getenv("DICOMNODE_METRICS_ADDRESS"); metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", n.MetricsHandler())
			logger.Info("serving metrics", "address", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	logger.Info("starting averaging node", "address", cfg.Address())
	if err := n.ListenAndServe(ctx, cfg.Address()); err != nil {
		logger.Error("node stopped", "error", err)
		os.Exit(1)
	}
}
