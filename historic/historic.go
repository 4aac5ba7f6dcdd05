// Package historic implements the historic input (spec component E): an
// input.Input that, on the first successfully admitted dataset for a
// patient, issues an outbound C-MOVE to fetch that patient's prior studies
// from a remote SCP. Fetched objects arrive back through the normal C-STORE
// path and are admitted like any other dataset; this package only owns the
// "issue the C-MOVE" side of the exchange.
//
// Grounded on input.Input (embedding stands in for the original's
// subclassing, per spec §9) and client.SendCMove/client.Address for the
// outbound request.
package historic

import (
	"log/slog"
	"sync"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dicomnode/pipeline/client"
	"github.com/dicomnode/pipeline/errors"
	"github.com/dicomnode/pipeline/input"
	"github.com/dicomnode/pipeline/pipeline"
	"github.com/dicomnode/pipeline/types"
)

// QueryRetrieveLevelPatient is the (0008,0052) value stamped onto the
// C-MOVE identifier built by the default blueprint.
const QueryRetrieveLevelPatient = "PATIENT"

// Config configures a historic Input.
type Config struct {
	// Address is the remote SCP the C-MOVE is issued against.
	Address client.Address
	// SourceAE is this node's own AE title, used as the C-MOVE calling AE
	// and, unless MoveDestination is set, as the move destination too
	// (i.e. "fetch back to me").
	SourceAE string
	// MoveDestination overrides the AE title instances are moved to. If
	// empty, SourceAE is used.
	MoveDestination string
	// SOPClassUID is the Query/Retrieve model the C-MOVE is issued under,
	// e.g. types.StudyRootQueryRetrieveInformationModelMove.
	SOPClassUID string
	// Blueprint builds the C-MOVE identifier dataset for patientID. If
	// nil, DefaultBlueprint is used.
	Blueprint func(patientID string) *types.Dataset
	// Input is the underlying accumulator configuration (required tags,
	// grinder, validity predicate) applied to datasets admitted via Add,
	// including the ones the C-MOVE itself fetches back.
	Input input.Config
	// Logger receives a line when the C-MOVE completes or fails. Defaults
	// to slog.Default().
	Logger *slog.Logger
}

// DefaultBlueprint copies PatientID and stamps QueryRetrieveLevel = PATIENT,
// matching original_source's historic input (spec §4.E).
func DefaultBlueprint(patientID string) *types.Dataset {
	ds := types.NewDataset()
	ds.MustSet(tag.PatientID, []string{patientID})
	ds.MustSet(tag.QueryRetrieveLevel, []string{QueryRetrieveLevelPatient})
	return ds
}

// Input embeds input.Input and adds the C-MOVE trigger. Not safe for
// concurrent use beyond what input.Input already guarantees; the pipeline
// tree serialises access per patient slot.
type Input struct {
	*input.Input
	cfg       Config
	patientID string

	mu         sync.Mutex
	moveIssued bool
	moveErr    error
}

// Declare builds a pipeline.Declaration that installs a historic Input
// named name into every patient slot Tree.newSlot creates, satisfying
// pipeline.Accumulator the same way a plain input.Input does - the only
// way a Node actually schedules a C-MOVE is by including this Declaration
// in the slice it passes to node.New.
func Declare(name string, cfg Config) pipeline.Declaration {
	return pipeline.Declaration{
		Name:   name,
		Config: cfg.Input,
		New: func(fsRoot, patientID string) pipeline.Accumulator {
			return New(name, cfg, fsRoot, patientID)
		},
	}
}

// New wraps an input.Input named name with historic C-MOVE behaviour.
func New(name string, cfg Config, fsRoot, patientID string) *Input {
	if cfg.Blueprint == nil {
		cfg.Blueprint = DefaultBlueprint
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MoveDestination == "" {
		cfg.MoveDestination = cfg.SourceAE
	}
	return &Input{
		Input:     input.New(name, cfg.Input, fsRoot, patientID),
		cfg:       cfg,
		patientID: patientID,
	}
}

// Add admits ds through the embedded Input and, on the first successful add
// for this slot's lifetime, issues the outbound C-MOVE in the background.
// Validity is exactly the embedded Input's predicate: the C-MOVE's progress
// is not tracked for it, so neither its completion nor its failure changes
// Validate, and under the default predicate the Input is valid as soon as
// this first Add succeeds.
func (h *Input) Add(ds *types.Dataset) (int, error) {
	count, err := h.Input.Add(ds)
	if err != nil {
		return count, err
	}

	h.mu.Lock()
	alreadyIssued := h.moveIssued
	h.moveIssued = true
	h.mu.Unlock()

	if !alreadyIssued {
		go h.issueMove()
	}

	return count, nil
}

// MoveIssued reports whether the at-most-one C-MOVE for this slot's
// lifetime has been triggered.
func (h *Input) MoveIssued() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.moveIssued
}

// MoveError returns the error from the background C-MOVE, if it failed.
// Returns nil while the move is still in flight or has not been issued.
func (h *Input) MoveError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.moveErr
}

func (h *Input) issueMove() {
	logger := h.cfg.Logger.With("patient_id", h.patientID, "input", h.Name())

	identifier := h.cfg.Blueprint(h.patientID)
	data, err := identifier.EncodeBytes()
	if err != nil {
		h.recordMoveErr(errors.NewCouldNotCompleteDIMSEMessage("encode C-MOVE identifier", err))
		logger.Error("historic C-MOVE failed", "error", err)
		return
	}

	assoc, err := client.Connect(h.cfg.Address.String(), client.Config{
		CallingAETitle: h.cfg.SourceAE,
		CalledAETitle:  h.cfg.Address.AETitle,
	})
	if err != nil {
		h.recordMoveErr(errors.NewCouldNotCompleteDIMSEMessage("connect for C-MOVE", err))
		logger.Error("historic C-MOVE failed", "error", err)
		return
	}
	defer assoc.Close()

	responses, err := assoc.SendCMove(&client.CMoveRequest{
		SOPClassUID:     h.cfg.SOPClassUID,
		MoveDestination: h.cfg.MoveDestination,
		Identifier:      data,
		MessageID:       1,
	})
	if err != nil {
		h.recordMoveErr(err)
		logger.Error("historic C-MOVE failed", "error", err)
		return
	}

	final := responses[len(responses)-1]
	logger.Info("historic C-MOVE completed",
		"status", final.Status,
		"completed", final.NumberOfCompletedSuboperations,
		"failed", final.NumberOfFailedSuboperations,
		"warning", final.NumberOfWarningSuboperations)
}

func (h *Input) recordMoveErr(err error) {
	h.mu.Lock()
	h.moveErr = err
	h.mu.Unlock()
}
