// Package ilog wires the pipeline's ambient logging stack: zerolog's global
// level is set from the node's configuration (grounded on
// OtchereDev-ris-dicom-connector's pkg/logger, the one example repo in the
// pack that wires rs/zerolog for a DICOM service), while every component in
// this module still talks to a *slog.Logger - the interface server.Server,
// node.Node, and client.Association already take. New sets both from one
// Config: zerolog receives only the global level, and the returned logger
// is a slog text handler writing to stderr or the configured file.
package ilog

import (
	"io"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
)

// Config is the node's log_level/log_path/disable_wire_logger
// configuration surface (spec §4.F).
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string
	// Path, if non-empty, appends log output to this file instead of
	// stderr.
	Path string
	// DisableWireLogger suppresses per-PDU association/DIMSE debug
	// logging (the teacher's association/service layers log at Debug for
	// every PDU) by clamping the effective level to at least Info,
	// mirroring the original's disable_pynetdicom_logger switch.
	DisableWireLogger bool
}

// New sets the global zerolog level from cfg and returns a *slog.Logger
// writing to stderr or cfg.Path for the rest of the module to use.
func New(cfg Config) (*slog.Logger, error) {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(zerologLevel(level))

	writer, err := openWriter(cfg.Path)
	if err != nil {
		return nil, err
	}

	effectiveLevel := level
	if cfg.DisableWireLogger && effectiveLevel < slog.LevelInfo {
		effectiveLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: effectiveLevel})
	return slog.New(handler), nil
}

func openWriter(path string) (io.Writer, error) {
	if path == "" {
		return os.Stderr, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level <= slog.LevelDebug:
		return zerolog.DebugLevel
	case level <= slog.LevelInfo:
		return zerolog.InfoLevel
	case level <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
