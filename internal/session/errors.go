package session

import "errors"

// Error kinds surfaced through Controller.Err. Per-tracker and per-peer
// faults are kept on their records and never surface here.
var (
	ErrStartFailure   = errors.New("start failed")
	ErrInvalidHandle  = errors.New("invalid session handle")
	ErrRemovalFailure = errors.New("removal failed")
	ErrProtocol       = errors.New("protocol error")
)

// errMessage renders err for display, falling back to fallback for nil.
func errMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}
