package gmail

import (
	"errors"
	"fmt"
)

// ErrNoMatch is returned when a search finds no message
var ErrNoMatch = errors.New("no matching message")

// ErrSenderMismatch is returned when the located message was sent by someone
// other than the expected sender
var ErrSenderMismatch = errors.New("located message has a different sender")

// APIError is a non-success response from the mail API
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// PartAttachment is an attachment part of a remote message
type PartAttachment struct {
	Filename     string
	MimeType     string
	AttachmentID string
	Size         int64
}
