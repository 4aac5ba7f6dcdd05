package output

// NoOutput discards the processed result. Always succeeds; used by
// pipelines whose process function has no externally visible result (e.g.
// it already wrote its own side effects).
type NoOutput struct{}

// Send always reports success.
func (NoOutput) Send() bool { return true }
