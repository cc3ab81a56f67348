package logger

// Structured field names shared by every component that logs.
const (
	FieldProtocol = "protocol"
	FieldTarget   = "target"
	FieldAddress  = "address"
	FieldRemote   = "remote"
	FieldBytes    = "bytes"
	FieldKind     = "kind"
	FieldRunID    = "run_id"
	FieldMode     = "mode"
)
