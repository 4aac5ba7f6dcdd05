// Package node implements the pipeline node (spec component F): the SCP
// front-end that accepts inbound associations, runs the C-STORE acceptance
// pipeline (calling-AE allow-list, filter, required-tag validation, admit),
// and schedules dispatch through a pluggable dispatch.Dispatcher once a
// patient slot becomes ready. Grounded on server.Server (the teacher's
// listener/association plumbing) and services.Registry (DIMSE command
// routing), wired to pipeline.Tree/input.Input/dispatch/output instead of
// the teacher's original handlers.
package node

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/suyashkumar/dicom"

	"github.com/dicomnode/pipeline/dimse"
	"github.com/dicomnode/pipeline/dispatch"
	"github.com/dicomnode/pipeline/errors"
	"github.com/dicomnode/pipeline/internal/metrics"
	"github.com/dicomnode/pipeline/output"
	"github.com/dicomnode/pipeline/pdu"
	"github.com/dicomnode/pipeline/pipeline"
	"github.com/dicomnode/pipeline/server"
	"github.com/dicomnode/pipeline/services"
	"github.com/dicomnode/pipeline/types"
)

// FilterFunc runs as acceptance-pipeline step 2. A false return maps to
// 0xB006; an error maps to 0xA801.
type FilterFunc func(ds *types.Dataset) (bool, error)

// ProcessFunc runs as dispatch step 3/4: given the InputContainer built from
// a patient's accumulated inputs, produce the output to send.
type ProcessFunc func(container *pipeline.InputContainer) (output.Output, error)

// Option configures a Node.
type Option func(*Node)

// WithFilter installs the acceptance pipeline's user filter predicate.
// Default: accept everything.
func WithFilter(filter FilterFunc) Option {
	return func(n *Node) { n.filter = filter }
}

// WithDispatcher overrides the dispatch variant. Default: dispatch.Synchronous.
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(n *Node) { n.dispatcher = d }
}

// WithRequireCallingAET restricts which calling AE titles may associate.
func WithRequireCallingAET(allowed ...string) Option {
	return func(n *Node) { n.requireCallingAET = allowed }
}

// WithRootDataDirectory enables filesystem backing for every declared
// Input, rooted at dir.
func WithRootDataDirectory(dir string) Option {
	return func(n *Node) { n.rootDataDirectory = dir }
}

// WithProcessingDirectory sets the scoped per-patient working directory
// dispatch changes into for the duration of process (spec §4.F dispatch
// step 2).
func WithProcessingDirectory(dir string) Option {
	return func(n *Node) { n.processingDirectory = dir }
}

// WithLogger overrides the node's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) { n.logger = logger }
}

// Node is the pipeline's SCP front-end.
type Node struct {
	aeTitle string

	declarations        []pipeline.Declaration
	filter              FilterFunc
	process             ProcessFunc
	dispatcher          dispatch.Dispatcher
	requireCallingAET   []string
	rootDataDirectory   string
	processingDirectory string
	logger              *slog.Logger

	tree *pipeline.Tree
}

// New builds a Node named aeTitle, declaring one Input per entry in
// declarations, dispatching ready patients through process.
func New(aeTitle string, declarations []pipeline.Declaration, process ProcessFunc, opts ...Option) *Node {
	n := &Node{
		aeTitle:      aeTitle,
		declarations: declarations,
		process:      process,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.filter == nil {
		n.filter = func(*types.Dataset) (bool, error) { return true, nil }
	}
	if n.dispatcher == nil {
		n.dispatcher = dispatch.NewSynchronous()
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	n.tree = pipeline.New(declarations, n.rootDataDirectory)
	return n
}

// AcceptancePolicy returns the pdu.AcceptancePolicy enforcing
// require_calling_aet, for use with server.WithAcceptancePolicy.
func (n *Node) AcceptancePolicy() pdu.AcceptancePolicy {
	return pdu.AcceptancePolicy{AllowedCallingAETitles: n.requireCallingAET}
}

// Registry builds a services.Registry wired to this node's C-STORE and
// C-ECHO handling, ready to pass to server.New/server.ListenAndServe.
func (n *Node) Registry() *services.Registry {
	reg := services.NewRegistry()
	reg.RegisterHandler(dimse.CEchoRQ, services.NewEchoService())
	reg.RegisterHandler(dimse.CStoreRQ, n)
	return reg
}

// ListenAndServe runs the node's SCP on address until ctx is cancelled.
func (n *Node) ListenAndServe(ctx context.Context, address string) error {
	return server.ListenAndServe(ctx, address, n.aeTitle, n.Registry(),
		server.WithAcceptancePolicy(n.AcceptancePolicy()),
		server.WithLogger(n.logger))
}

// HandleDIMSE implements interfaces.ServiceHandler for C-STORE
// sub-operations: the acceptance pipeline's steps 2-5 (step 1,
// calling-AE filtering, happens at the association layer via
// AcceptancePolicy).
func (n *Node) HandleDIMSE(ctx context.Context, msg *types.Message, data []byte) (*types.Message, []byte, error) {
	status := n.acceptAndAdmit(ctx, data)
	return services.NewCStoreResponse(msg, status), nil, nil
}

func (n *Node) acceptAndAdmit(ctx context.Context, data []byte) uint16 {
	parsed, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to parse incoming dataset", "error", err)
		return 0xC000
	}
	ds := types.WrapDataset(parsed)

	accept, err := n.filter(ds)
	if err != nil {
		n.logger.ErrorContext(ctx, "filter raised an error", "error", err)
		return 0xA801
	}
	if !accept {
		return 0xB006
	}

	if missing := missingRequiredTags(ds, n.declarations); len(missing) > 0 {
		patientID, _ := ds.PatientID()
		if patientID == "" {
			return 0xB007
		}
		n.logger.WarnContext(ctx, "dataset missing required tags", "missing", missing)
		return 0xB006
	}

	ready, patientID, err := n.tree.Admit(ds)
	if err != nil {
		if ide, ok := err.(*errors.InvalidDataset); ok {
			return ide.Status
		}
		n.logger.ErrorContext(ctx, "admit failed", "error", err)
		return 0xC000
	}

	metrics.ImagesAdmitted.Inc()
	metrics.PatientsInFlight.Set(float64(len(n.tree.PatientIDs())))

	if ready {
		n.dispatcher.Dispatch(func() { n.dispatch(patientID) })
	}

	return 0x0000
}

// missingRequiredTags checks ds against the union of every declared input's
// required tags, per spec §4.F acceptance step 3.
func missingRequiredTags(ds *types.Dataset, declarations []pipeline.Declaration) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, decl := range declarations {
		for _, tg := range decl.Config.RequiredTags {
			key := tg.String()
			if seen[key] || ds.Has(tg) {
				continue
			}
			seen[key] = true
			missing = append(missing, key)
		}
	}
	return missing
}

// dispatch runs the full dispatch sequence (spec §4.F dispatch steps 1-6)
// for patientID. Invoked on whatever goroutine the configured Dispatcher
// schedules it on.
func (n *Node) dispatch(patientID string) {
	start := time.Now()
	defer func() {
		metrics.DispatchDuration.Observe(time.Since(start).Seconds())
		metrics.PatientsInFlight.Set(float64(len(n.tree.PatientIDs())))
	}()

	slot, ok := n.tree.Extract(patientID)
	if !ok {
		return
	}

	restore, err := n.enterProcessingDirectory(patientID)
	if err != nil {
		n.logger.Error("failed to enter processing directory", "patient_id", patientID, "error", err)
		metrics.DispatchFailures.Inc()
		return
	}
	defer restore()

	container, err := slot.BuildContainer()
	if err != nil {
		n.logger.Error("failed to build input container", "patient_id", patientID, "error", err)
		metrics.DispatchFailures.Inc()
		n.releaseSlot(slot, patientID)
		return
	}

	out, err := n.process(container)
	if err != nil {
		n.logger.Error("Encountered error in user function process", "patient_id", patientID, "error", err)
		metrics.DispatchFailures.Inc()
		n.releaseSlot(slot, patientID)
		return
	}

	if out != nil && !out.Send() {
		n.logger.Error("output send failed", "patient_id", patientID)
		metrics.DispatchFailures.Inc()
	}

	n.releaseSlot(slot, patientID)
}

func (n *Node) releaseSlot(slot *pipeline.Slot, patientID string) {
	if err := slot.Release(); err != nil {
		n.logger.Error("failed to release slot", "patient_id", patientID, "error", err)
	}
	if n.rootDataDirectory != "" {
		if err := os.RemoveAll(filepath.Join(n.rootDataDirectory, patientID)); err != nil {
			n.logger.Error("failed to remove patient directory", "patient_id", patientID, "error", err)
		}
	}
}

// enterProcessingDirectory creates <processing_directory>/<patientID>,
// chdirs into it, and returns a restore func that chdirs back - a scoped
// acquisition with guaranteed restoration on all exits (spec §4.F dispatch
// step 2). A no-op when ProcessingDirectory is unset.
func (n *Node) enterProcessingDirectory(patientID string) (func(), error) {
	if n.processingDirectory == "" {
		return func() {}, nil
	}

	dir := filepath.Join(n.processingDirectory, patientID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("node: create processing directory: %w", err)
	}

	previous, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("node: get working directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return nil, fmt.Errorf("node: enter processing directory: %w", err)
	}

	return func() {
		if err := os.Chdir(previous); err != nil {
			n.logger.Error("failed to restore working directory", "error", err)
		}
	}, nil
}

// Close joins any in-flight dispatch work and releases the dispatcher.
func (n *Node) Close() error {
	return n.dispatcher.Close()
}

// Images reports the number of datasets currently buffered across every
// patient slot - useful for tests and health checks.
func (n *Node) Images() int { return n.tree.Images() }

// MetricsHandler returns the HTTP handler serving this node's Prometheus
// metrics, for callers that want to expose it alongside ListenAndServe.
func (n *Node) MetricsHandler() http.Handler { return metrics.Handler() }
