package relay

import "fmt"

// MediaFetchError means the attachment payload could not be downloaded
// through the transport. Recoverable; the sender is notified and no retry
// is attempted.
type MediaFetchError struct {
	Err error
}

func (e *MediaFetchError) Error() string {
	if e.Err == nil {
		return "media fetch returned no data"
	}
	return fmt.Sprintf("media fetch failed: %v", e.Err)
}

func (e *MediaFetchError) Unwrap() error { return e.Err }

// RelayError means the mail transport rejected or failed the send.
// Recoverable; the sender is notified and dialog state is left untouched.
type RelayError struct {
	Err error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay failed: %v", e.Err)
}

func (e *RelayError) Unwrap() error { return e.Err }

// ValidationError means the sender supplied a malformed email address
// during configuration. Recoverable; the dialog re-prompts.
type ValidationError struct {
	Input string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid email address: %q", e.Input)
}
