package output

import (
	"log/slog"

	"github.com/dicomnode/pipeline/client"
	"github.com/dicomnode/pipeline/types"
)

// DIMSETarget pairs a remote address with the datasets to C-STORE there.
type DIMSETarget struct {
	Address  client.Address
	Datasets []*types.Dataset
}

// DIMSEOutput sends each target's datasets to its Address over a fresh
// C-STORE association, via client.SendImages (spec component A).
type DIMSEOutput struct {
	SourceAE string
	Targets  []DIMSETarget
	Logger   *slog.Logger
}

// Send calls client.SendImages for every target and reports whether every
// one of them returned a success status.
func (o DIMSEOutput) Send() bool {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ok := true
	for _, target := range o.Targets {
		status, err := client.SendImages(o.SourceAE, target.Address, client.Datasets(target.Datasets))
		if err != nil {
			logger.Error("DIMSE output failed", "address", target.Address.String(), "error", err)
			ok = false
			continue
		}
		if status != 0x0000 {
			logger.Error("DIMSE output returned non-success status", "address", target.Address.String(), "status", status)
			ok = false
		}
	}
	return ok
}
