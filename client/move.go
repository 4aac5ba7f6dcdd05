package client

import (
	"fmt"

	"github.com/dicomnode/pipeline/dimse"
	"github.com/dicomnode/pipeline/errors"
	"github.com/dicomnode/pipeline/types"
)

// CMoveRequest represents a C-MOVE request: move every instance matching
// the identifier dataset to MoveDestination (an AE title known to the SCP).
type CMoveRequest struct {
	SOPClassUID     string
	MoveDestination string
	Identifier      []byte // encoded Study Root Query/Retrieve identifier dataset
	MessageID       uint16
}

// CMoveResponse is one C-MOVE-RSP frame. C-MOVE is a multi-response DIMSE
// exchange: the SCP returns zero or more pending responses carrying
// suboperation counters, followed by exactly one final (non-pending)
// response.
type CMoveResponse struct {
	Status                         uint16
	MessageID                      uint16
	NumberOfRemainingSuboperations uint16
	NumberOfCompletedSuboperations uint16
	NumberOfFailedSuboperations    uint16
	NumberOfWarningSuboperations   uint16
}

// Pending reports whether this is an intermediate response; the caller
// should keep reading from SendCMove's channel until Pending is false.
func (r *CMoveResponse) Pending() bool {
	return r.Status == types.StatusPending
}

// SendCMove issues a C-MOVE-RQ and returns every response frame the SCP
// sends back, in order, ending with the final (non-pending) response.
// Mirrors SendCStore's single-request/single-response shape but loops
// receiveDIMSEMessage until a non-pending status arrives, per the C-MOVE
// sub-operation protocol (spec component A, "send_image, send_images").
func (a *Association) SendCMove(req *CMoveRequest) ([]*CMoveResponse, error) {
	presContextID, err := a.GetPresentationContextID(req.SOPClassUID)
	if err != nil {
		return nil, errors.NewCouldNotCompleteDIMSEMessage("find C-MOVE presentation context", err)
	}

	command := &types.Message{
		CommandField:           dimse.CMoveRQ,
		MessageID:              req.MessageID,
		Priority:               0x0000,
		CommandDataSetType:     0x0000, // identifier dataset present
		AffectedSOPClassUID:    req.SOPClassUID,
		MoveDestination:        req.MoveDestination,
	}

	commandData, err := dimse.EncodeCommand(command)
	if err != nil {
		return nil, errors.NewCouldNotCompleteDIMSEMessage("encode C-MOVE-RQ", err)
	}

	if err := a.sendDIMSEMessage(presContextID, commandData, req.Identifier); err != nil {
		return nil, errors.NewCouldNotCompleteDIMSEMessage("send C-MOVE-RQ", err)
	}

	a.logger.Debug("Sent C-MOVE-RQ",
		"sop_class", req.SOPClassUID,
		"destination", req.MoveDestination)

	var responses []*CMoveResponse
	for {
		resp, err := a.receiveCMoveResponse()
		if err != nil {
			return responses, errors.NewCouldNotCompleteDIMSEMessage("receive C-MOVE-RSP", err)
		}
		responses = append(responses, resp)
		if !resp.Pending() {
			return responses, nil
		}
	}
}

func (a *Association) receiveCMoveResponse() (*CMoveResponse, error) {
	msg, _, err := a.receiveDIMSEMessage()
	if err != nil {
		return nil, err
	}
	if msg.CommandField != dimse.CMoveRSP {
		return nil, fmt.Errorf("unexpected command: 0x%04x (expected C-MOVE-RSP)", msg.CommandField)
	}

	return &CMoveResponse{
		Status:                         msg.Status,
		MessageID:                      msg.MessageIDBeingRespondedTo,
		NumberOfRemainingSuboperations: uint16Value(msg.NumberOfRemainingSuboperations),
		NumberOfCompletedSuboperations: uint16Value(msg.NumberOfCompletedSuboperations),
		NumberOfFailedSuboperations:    uint16Value(msg.NumberOfFailedSuboperations),
		NumberOfWarningSuboperations:   uint16Value(msg.NumberOfWarningSuboperations),
	}, nil
}

func uint16Value(p *uint16) uint16 {
	if p == nil {
		return 0
	}
	return *p
}
