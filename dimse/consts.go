package dimse

import "github.com/dicomnode/pipeline/types"

// DIMSE command field values, aliased from types so callers inside this
// package can refer to them unqualified the way the wire encode/decode
// helpers in store.go already do.
const (
	CStoreRQ  = types.CStoreRQ
	CStoreRSP = types.CStoreRSP
	CMoveRQ   = types.CMoveRQ
	CMoveRSP  = types.CMoveRSP
	CEchoRQ   = types.CEchoRQ
	CEchoRSP  = types.CEchoRSP
)

// DIMSE status codes, aliased from types for the same reason.
const (
	StatusSuccess = types.StatusSuccess
	StatusPending = types.StatusPending
	StatusFailure = types.StatusFailure
)
