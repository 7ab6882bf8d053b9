package registry

import "errors"

// Revert reasons. The anchor worker matches on these with errors.Is to tell
// safe-to-ignore rejections (ErrPassportExists after a lost confirmation)
// apart from genuine failures.
var (
	ErrPassportExists    = errors.New("passport already registered")
	ErrHashExists        = errors.New("hash already registered")
	ErrUnknownPassport   = errors.New("passport not registered")
	ErrInvalidPassportID = errors.New("invalid passport id")
	ErrInvalidHash       = errors.New("invalid hash")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrNotOwner          = errors.New("caller is not passport owner")
	ErrNotAdmin          = errors.New("caller is not admin")
	ErrNotAuthorized     = errors.New("caller lacks hub role")
	ErrPaused            = errors.New("registry is paused")
	ErrLengthMismatch    = errors.New("batch array length mismatch")
)
