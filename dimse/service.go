package dimse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dicomnode/pipeline/interfaces"
	"github.com/dicomnode/pipeline/types"
)

// responder is the subset of *pdu.Layer the Service needs to send responses.
// Defined locally (rather than importing pdu) to avoid a dimse<->pdu import
// cycle; pdu.Layer satisfies it structurally.
type responder interface {
	SendDIMSEResponseWithDataset(presContextID byte, commandData []byte, datasetData []byte) error
}

// pending accumulates the command and dataset fragments of an in-flight
// DIMSE message for one presentation context until both are complete.
type pending struct {
	commandBuf      []byte
	datasetBuf      []byte
	msg             *types.Message
	commandComplete bool
	datasetExpected bool
	datasetComplete bool
}

// Service routes complete DIMSE messages, reassembled from P-DATA-TF
// fragments, to an interfaces.ServiceHandler and writes back its response.
type Service struct {
	handler interfaces.ServiceHandler
	logger  *slog.Logger
	inFlight map[byte]*pending
}

// NewService builds a Service that dispatches to handler.
func NewService(handler interfaces.ServiceHandler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		handler:  handler,
		logger:   logger,
		inFlight: make(map[byte]*pending),
	}
}

// HandleDIMSEMessage implements pdu.DIMSEHandler. It reassembles command and
// dataset fragments delivered across one or more P-DATA-TF PDUs, and once a
// full DIMSE message is available, dispatches it to the configured handler
// and writes the response through layer.
func (s *Service) HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, layer responder) error {
	p, ok := s.inFlight[presContextID]
	if !ok {
		p = &pending{}
		s.inFlight[presContextID] = p
	}

	isCommand := msgCtrlHeader&0x01 != 0
	isLast := msgCtrlHeader&0x02 != 0

	if isCommand {
		p.commandBuf = append(p.commandBuf, data...)
		if isLast {
			msg, err := DecodeCommand(p.commandBuf)
			if err != nil {
				delete(s.inFlight, presContextID)
				return fmt.Errorf("failed to decode DIMSE command: %w", err)
			}
			p.msg = msg
			p.commandComplete = true
			p.datasetExpected = msg.CommandDataSetType != 0x0101
			p.datasetComplete = !p.datasetExpected
		}
	} else {
		p.datasetBuf = append(p.datasetBuf, data...)
		if isLast {
			p.datasetComplete = true
		}
	}

	if !p.commandComplete || !p.datasetComplete {
		return nil
	}

	delete(s.inFlight, presContextID)

	s.logger.Debug("Dispatching DIMSE message",
		"command_field", fmt.Sprintf("0x%04x", p.msg.CommandField),
		"message_id", p.msg.MessageID,
		"presentation_context_id", presContextID)

	respMsg, respData, err := s.handler.HandleDIMSE(context.Background(), p.msg, p.datasetBuf)
	if err != nil {
		return fmt.Errorf("service handler failed: %w", err)
	}
	if respMsg == nil {
		// Streaming/no-response operations (not used by any handler in this
		// module) would return here with nothing more to send.
		return nil
	}

	respCommand, err := EncodeCommand(respMsg)
	if err != nil {
		return fmt.Errorf("failed to encode DIMSE response: %w", err)
	}

	return layer.SendDIMSEResponseWithDataset(presContextID, respCommand, respData)
}
