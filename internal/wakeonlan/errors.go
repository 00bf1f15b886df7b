package wakeonlan

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the adapter and its devices.
var (
	ErrReadOnlyProperty = errors.New("read only property")
	ErrUnknownAction    = errors.New("unknown action")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrWakeFailed       = errors.New("wake failed")
	ErrRateLimited      = errors.New("wake rate limit exceeded")
)

// WakeError reports a magic packet that could not be transmitted.
type WakeError struct {
	MAC string
	Err error
}

func (e *WakeError) Error() string {
	return fmt.Sprintf("wake %s: %v", e.MAC, e.Err)
}

func (e *WakeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrWakeFailed) true for every WakeError.
func (e *WakeError) Is(target error) bool { return target == ErrWakeFailed }
