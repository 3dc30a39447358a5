package exporter

// ExportResult is the outcome of writing one file
type ExportResult struct {
	Success     bool   `json:"success"`
	Filename    string `json:"filename,omitempty"`
	Error       string `json:"error,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`

	err error
}

// Err returns the failure cause, if any
func (r ExportResult) Err() error {
	return r.err
}

func succeeded(filename string) ExportResult {
	return ExportResult{Success: true, Filename: filename}
}

func failed(err error) ExportResult {
	return ExportResult{Error: err.Error(), err: err}
}

// AttachmentBatch summarizes a multi-attachment export. It succeeds when at
// least one file was written.
type AttachmentBatch struct {
	Success      bool           `json:"success"`
	Total        int            `json:"total"`
	Saved        int            `json:"saved"`
	Placeholders int            `json:"placeholders"`
	Failed       int            `json:"failed"`
	Results      []ExportResult `json:"results"`
	Error        string         `json:"error,omitempty"`

	err error
}

// Err returns the first failure when nothing was written
func (b AttachmentBatch) Err() error {
	return b.err
}

func batchFailed(err error) AttachmentBatch {
	return AttachmentBatch{Results: []ExportResult{}, Error: err.Error(), err: err}
}

func (b *AttachmentBatch) add(r ExportResult) {
	b.Total++
	b.Results = append(b.Results, r)
	switch {
	case r.Success && r.Placeholder:
		b.Placeholders++
	case r.Success:
		b.Saved++
	default:
		b.Failed++
		if b.err == nil {
			b.err = r.err
		}
	}
}

func (b *AttachmentBatch) finish() {
	b.Success = b.Saved+b.Placeholders > 0
	if b.Success {
		b.err = nil
		return
	}
	if b.err != nil {
		b.Error = b.err.Error()
	}
}

// AllResult is the outcome of exporting a message and its attachments
type AllResult struct {
	Success     bool             `json:"success"`
	Document    ExportResult     `json:"document"`
	Attachments *AttachmentBatch `json:"attachments,omitempty"`
	Error       string           `json:"error,omitempty"`
}
