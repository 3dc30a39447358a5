package bridge

import (
	"github.com/edu-moreno89/erado-export/internal/db"
	"github.com/edu-moreno89/erado-export/internal/exporter"
	"github.com/edu-moreno89/erado-export/internal/extractor"
)

// Response is any bridge reply. Every reply carries success and, on
// failure, error at the top level of its JSON form.
type Response interface {
	Outcome() Status
}

// Status is the common success/error pair
type Status struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s Status) Outcome() Status { return s }

func ok() Status { return Status{Success: true} }

// Failure converts err into a failed reply
func Failure(err error) Status {
	return Status{Error: err.Error()}
}

type EmailResponse struct {
	Status
	Email extractor.EmailRecord `json:"email"`
}

type ThreadResponse struct {
	Status
	Emails []extractor.ThreadSummary `json:"emails"`
}

type FolderResponse struct {
	Status
	HasFolder  bool   `json:"hasFolder"`
	FolderName string `json:"folderName,omitempty"`
}

type AuthResponse struct {
	Status
	Authenticated bool `json:"authenticated"`
}

type HistoryResponse struct {
	Status
	Exports []*db.Export `json:"exports"`
}

type DocumentResponse struct {
	exporter.ExportResult
}

func (r DocumentResponse) Outcome() Status {
	return Status{Success: r.Success, Error: r.Error}
}

type AttachmentsResponse struct {
	exporter.AttachmentBatch
}

func (r AttachmentsResponse) Outcome() Status {
	return Status{Success: r.Success, Error: r.Error}
}

type ExportAllResponse struct {
	exporter.AllResult
}

func (r ExportAllResponse) Outcome() Status {
	return Status{Success: r.Success, Error: r.Error}
}
