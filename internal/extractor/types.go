package extractor

// Placeholder values substituted when a field cannot be resolved.
const (
	DefaultSubject        = "No Subject"
	DefaultSender         = "Unknown Sender"
	DefaultSenderName     = "Unknown Name"
	DefaultDate           = "Unknown Date"
	DefaultBody           = "No content found"
	DefaultPreview        = "No content"
	DefaultAttachmentName = "Unknown Attachment"
	DefaultSize           = "Unknown Size"
	DefaultMimeType       = "Unknown Type"
)

// EmailRecord represents one extracted message
type EmailRecord struct {
	Subject     string          `json:"subject"`
	Sender      string          `json:"sender"`
	Date        string          `json:"date"`
	Body        string          `json:"body"`
	Attachments []AttachmentRef `json:"attachments"`
	SourceURL   string          `json:"url"`
}

// AttachmentRef describes an attachment and where its bytes can be fetched from.
// AttachmentID and MessageID are only set after resolution against the remote
// API, DownloadURL only when the markup carried a direct link.
type AttachmentRef struct {
	Name         string `json:"name"`
	Size         string `json:"size"`
	MimeType     string `json:"type"`
	AttachmentID string `json:"attachmentId,omitempty"`
	MessageID    string `json:"messageId,omitempty"`
	DownloadURL  string `json:"downloadUrl,omitempty"`
	SizeBytes    int64  `json:"sizeBytes,omitempty"`
}

// ThreadSummary is one entry of an enumerated conversation
type ThreadSummary struct {
	Index           int    `json:"index"`
	ElementIndex    int    `json:"elementIndex"`
	Sender          string `json:"sender"`
	SenderName      string `json:"senderName"`
	Date            string `json:"date"`
	SubjectShared   string `json:"subject"`
	BodyPreview     string `json:"bodyPreview"`
	AttachmentCount int    `json:"attachmentCount"`
}

// Normalize substitutes defaults for every empty field so consumers never
// have to branch on missing data. It returns the normalized copy.
func (r EmailRecord) Normalize() EmailRecord {
	r.Subject = orDefault(r.Subject, DefaultSubject)
	r.Sender = orDefault(r.Sender, DefaultSender)
	r.Date = orDefault(r.Date, DefaultDate)
	r.Body = orDefault(r.Body, DefaultBody)
	atts := make([]AttachmentRef, len(r.Attachments))
	for i, a := range r.Attachments {
		atts[i] = a.Normalize()
	}
	r.Attachments = atts
	return r
}

// Normalize fills attachment placeholders
func (a AttachmentRef) Normalize() AttachmentRef {
	a.Name = orDefault(a.Name, DefaultAttachmentName)
	a.Size = orDefault(a.Size, DefaultSize)
	a.MimeType = orDefault(a.MimeType, DefaultMimeType)
	return a
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
