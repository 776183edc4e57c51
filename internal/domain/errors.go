package domain

import "errors"

// Domain errors.
var (
	ErrEventNotFound      = errors.New("event not found")
	ErrSignupNotFound     = errors.New("signup not found")
	ErrDuplicateMessage   = errors.New("message already tracked by another event")
	ErrTimeParse          = errors.New("unrecognized date/time")
	ErrTimeInPast         = errors.New("date and time must be in the future")
	ErrDialogueTimeout    = errors.New("dialogue timed out")
	ErrDialogueCancelled  = errors.New("dialogue cancelled")
	ErrDialogueAborted    = errors.New("dialogue aborted")
	ErrDialogueInProgress = errors.New("another dialogue is in progress")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrGateway            = errors.New("gateway call failed")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrEventNotFound, "event_not_found"},
	{ErrSignupNotFound, "signup_not_found"},
	{ErrDuplicateMessage, "duplicate_message"},
	{ErrTimeInPast, "datetime_in_past"},
	{ErrTimeParse, "datetime_unparsable"},
	{ErrDialogueTimeout, "dialogue_timeout"},
	{ErrDialogueCancelled, "dialogue_cancelled"},
	{ErrDialogueAborted, "dialogue_aborted"},
	{ErrDialogueInProgress, "dialogue_in_progress"},
	{ErrPermissionDenied, "permission_denied"},
	{ErrGateway, "gateway"},
}

// Code returns the stable code of the first domain error found in err's
// chain, or "" when err carries none. Codes double as i18n key suffixes
// ("errors.<code>").
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
