package core

import "errors"

// Error codes for policy violations. A violating record is skipped; the
// rest of the message is still processed.
const (
	ErrCodeNotIdentified     = "not_identified"
	ErrCodeAlreadyIdentified = "already_identified"
	ErrCodeNotInRoom         = "not_in_room"
	ErrCodeBadRoomID         = "bad_room_id"
	ErrCodeNotPlainRoom      = "not_plain_room"
	ErrCodeNotCrownHolder    = "not_crown_holder"
	ErrCodeCrownCooldown     = "crown_cooldown"
	ErrCodeNoteRange         = "note_range"
	ErrCodeTextTooLong       = "text_too_long"
	ErrCodeNameTooLong       = "name_too_long"
	ErrCodeBanDuration       = "ban_duration"
	ErrCodeAlreadyBanned     = "already_banned"
	ErrCodeUnknownTarget     = "unknown_target"
)

var (
	// ErrUnknownOpcode aborts the rest of a message whose next record has
	// an opcode with no handler.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrHubStopped is returned by calls made after Run has returned.
	ErrHubStopped = errors.New("hub stopped")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
