package client

import (
	"fmt"

	"github.com/dicomnode/pipeline/errors"
	"github.com/dicomnode/pipeline/types"
)

// Address identifies a remote SCP: host/port plus its AE title, the triple
// DIMSE associations are built from (spec component A).
type Address struct {
	Host    string
	Port    int
	AETitle string
}

// String renders the address as a host:port dial string.
func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// DatasetSource is the minimal shape SendImages needs from an image
// container - satisfied directly by tree.DicomTree, tree.PatientTree, etc.
// and by the Grinder algebra's ListGrinder output wrapped in a trivial Map.
type DatasetSource interface {
	Map(f func(*types.Dataset))
}

// datasetSlice adapts a plain []*types.Dataset to DatasetSource so
// SendImages can also be called with grinder-shaped output.
type datasetSlice []*types.Dataset

func (s datasetSlice) Map(f func(*types.Dataset)) {
	for _, ds := range s {
		f(ds)
	}
}

// Datasets adapts a plain slice (e.g. a ListGrinder result) to DatasetSource
// for SendImages/SendImagesThread.
func Datasets(datasets []*types.Dataset) DatasetSource {
	return datasetSlice(datasets)
}

// SendImage opens an association to addr, C-STOREs ds, and closes the
// association. srcAE is the calling AE title. Returns the peer's C-STORE-RSP
// status; all transport failures fold into CouldNotCompleteDIMSEMessage per
// spec §4.A/§7.
func SendImage(srcAE string, addr Address, ds *types.Dataset) (uint16, error) {
	assoc, err := Connect(addr.String(), Config{
		CallingAETitle: srcAE,
		CalledAETitle:  addr.AETitle,
	})
	if err != nil {
		return 0, errors.NewCouldNotCompleteDIMSEMessage("connect to "+addr.String(), err)
	}
	defer assoc.Close()

	return sendOne(assoc, ds)
}

// SendImages opens a single association to addr and C-STOREs every Dataset
// source yields, in source.Map's iteration order. Returns the worst status
// observed (the first non-success status encountered; 0x0000 if every
// instance stored cleanly).
func SendImages(srcAE string, addr Address, source DatasetSource) (uint16, error) {
	assoc, err := Connect(addr.String(), Config{
		CallingAETitle: srcAE,
		CalledAETitle:  addr.AETitle,
	})
	if err != nil {
		return 0, errors.NewCouldNotCompleteDIMSEMessage("connect to "+addr.String(), err)
	}
	defer assoc.Close()

	var aggregate uint16
	var firstErr error
	source.Map(func(ds *types.Dataset) {
		if firstErr != nil {
			return
		}
		status, err := sendOne(assoc, ds)
		if err != nil {
			firstErr = err
			return
		}
		if status != 0x0000 && aggregate == 0x0000 {
			aggregate = status
		}
	})
	return aggregate, firstErr
}

func sendOne(assoc *Association, ds *types.Dataset) (uint16, error) {
	sopClassUID, err := ds.SOPClassUID()
	if err != nil {
		return 0, errors.NewInvalidDataset(0xB006, "dataset missing SOPClassUID")
	}
	sopInstanceUID, err := ds.SOPInstanceUID()
	if err != nil {
		return 0, errors.NewInvalidDataset(0xB006, "dataset missing SOPInstanceUID")
	}
	data, err := ds.EncodeBytes()
	if err != nil {
		return 0, errors.NewCouldNotCompleteDIMSEMessage("encode dataset", err)
	}

	resp, err := assoc.SendCStore(&CStoreRequest{
		SOPClassUID:    sopClassUID,
		SOPInstanceUID: sopInstanceUID,
		Data:           data,
		MessageID:      1,
	})
	if err != nil {
		return 0, errors.NewCouldNotCompleteDIMSEMessage("C-STORE "+sopInstanceUID, err)
	}
	return resp.Status, nil
}

// SendImagesHandle is the joinable handle returned by SendImagesThread.
type SendImagesHandle struct {
	done chan struct{}
	status uint16
	err    error
}

// Join blocks until the background send completes and returns its aggregate
// status, matching SendImages' return contract.
func (h *SendImagesHandle) Join() (uint16, error) {
	<-h.done
	return h.status, h.err
}

// SendImagesThread runs SendImages in a background goroutine and returns
// immediately with a handle the caller can Join on. Used by dispatchers that
// must not block their worker on outbound network I/O (spec component A).
func SendImagesThread(srcAE string, addr Address, source DatasetSource) *SendImagesHandle {
	h := &SendImagesHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.status, h.err = SendImages(srcAE, addr, source)
	}()
	return h
}
