package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/edu-moreno89/erado-export/internal/extractor"
)

var (
	ErrUnknownAction = errors.New("Unknown action")
	ErrMalformed     = errors.New("malformed request")
)

// Action tags on the wire
const (
	ActionGetOpenEmail           = "getOpenEmail"
	ActionGetAllEmailsInThread   = "getAllEmailsInThread"
	ActionGetSelectedEmailData   = "getSelectedEmailData"
	ActionGeneratePDF            = "generatePDF"
	ActionSelectFolder           = "selectFolder"
	ActionGetFolderStatus        = "getFolderStatus"
	ActionSaveAttachmentToFolder = "saveAttachmentToFolder"
	ActionDownloadAttachments    = "downloadAttachments"
	ActionExportAll              = "exportAll"
	ActionAuthenticate           = "authenticate"
	ActionSetToken               = "setToken"
	ActionGetExportHistory       = "getExportHistory"
)

// Target is the execution context a request runs in
type Target int

const (
	// Content requests work on the page: its markup and its target folder
	Content Target = iota
	// Background requests work on process-wide state: credentials and history
	Background
)

func (t Target) String() string {
	if t == Background {
		return "background"
	}
	return "content"
}

// Request is one of the closed set of bridge actions
type Request interface {
	Action() string
	target() Target
}

// Page is a snapshot of the mail page the request refers to
type Page struct {
	HTML string `json:"html"`
	URL  string `json:"url"`
}

// Selection picks the message to act on: an explicit record wins, then the
// thread entry at Index, then the open message of the page
type Selection struct {
	Page
	Index *int                   `json:"index,omitempty"`
	Email *extractor.EmailRecord `json:"emailData,omitempty"`
}

type GetOpenEmail struct {
	Page
}

type GetAllEmailsInThread struct {
	Page
}

type GetSelectedEmailData struct {
	Page
	Index int `json:"index"`
}

type GeneratePDF struct {
	Selection
}

type SelectFolder struct {
	Path string `json:"path"`
}

type GetFolderStatus struct{}

// SaveAttachmentToFolder carries the attachment bytes base64 encoded
type SaveAttachmentToFolder struct {
	Attachment extractor.AttachmentRef `json:"attachment"`
	Data       string                  `json:"data"`
}

type DownloadAttachments struct {
	Selection
}

type ExportAll struct {
	Selection
}

type Authenticate struct{}

type SetToken struct {
	Token string `json:"token"`
}

type GetExportHistory struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (*GetOpenEmail) Action() string           { return ActionGetOpenEmail }
func (*GetAllEmailsInThread) Action() string   { return ActionGetAllEmailsInThread }
func (*GetSelectedEmailData) Action() string   { return ActionGetSelectedEmailData }
func (*GeneratePDF) Action() string            { return ActionGeneratePDF }
func (*SelectFolder) Action() string           { return ActionSelectFolder }
func (*GetFolderStatus) Action() string        { return ActionGetFolderStatus }
func (*SaveAttachmentToFolder) Action() string { return ActionSaveAttachmentToFolder }
func (*DownloadAttachments) Action() string    { return ActionDownloadAttachments }
func (*ExportAll) Action() string              { return ActionExportAll }
func (*Authenticate) Action() string           { return ActionAuthenticate }
func (*SetToken) Action() string               { return ActionSetToken }
func (*GetExportHistory) Action() string       { return ActionGetExportHistory }

func (*GetOpenEmail) target() Target           { return Content }
func (*GetAllEmailsInThread) target() Target   { return Content }
func (*GetSelectedEmailData) target() Target   { return Content }
func (*GeneratePDF) target() Target            { return Content }
func (*SelectFolder) target() Target           { return Content }
func (*GetFolderStatus) target() Target        { return Content }
func (*SaveAttachmentToFolder) target() Target { return Content }
func (*DownloadAttachments) target() Target    { return Content }
func (*ExportAll) target() Target              { return Content }
func (*Authenticate) target() Target           { return Background }
func (*SetToken) target() Target               { return Background }
func (*GetExportHistory) target() Target       { return Background }

// TargetOf reports where req runs
func TargetOf(req Request) Target {
	return req.target()
}

// Envelope is a decoded request addressed to one session
type Envelope struct {
	SessionID string
	Request   Request
}

// newRequest maps an action tag to an empty request of the matching type
func newRequest(action string) (Request, bool) {
	switch action {
	case ActionGetOpenEmail:
		return &GetOpenEmail{}, true
	case ActionGetAllEmailsInThread:
		return &GetAllEmailsInThread{}, true
	case ActionGetSelectedEmailData:
		return &GetSelectedEmailData{}, true
	case ActionGeneratePDF:
		return &GeneratePDF{}, true
	case ActionSelectFolder:
		return &SelectFolder{}, true
	case ActionGetFolderStatus:
		return &GetFolderStatus{}, true
	case ActionSaveAttachmentToFolder:
		return &SaveAttachmentToFolder{}, true
	case ActionDownloadAttachments:
		return &DownloadAttachments{}, true
	case ActionExportAll:
		return &ExportAll{}, true
	case ActionAuthenticate:
		return &Authenticate{}, true
	case ActionSetToken:
		return &SetToken{}, true
	case ActionGetExportHistory:
		return &GetExportHistory{}, true
	default:
		return nil, false
	}
}

// Decode parses a flat JSON message: {"action": "...", "sessionId": "...", ...fields}
func Decode(raw []byte) (Envelope, error) {
	var head struct {
		Action    string `json:"action"`
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	req, ok := newRequest(head.Action)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownAction, head.Action)
	}
	if err := json.Unmarshal(raw, req); err != nil {
		return Envelope{}, fmt.Errorf("%w: %s: %v", ErrMalformed, head.Action, err)
	}
	return Envelope{SessionID: head.SessionID, Request: req}, nil
}
