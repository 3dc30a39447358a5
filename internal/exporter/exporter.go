package exporter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/edu-moreno89/erado-export/internal/db"
	"github.com/edu-moreno89/erado-export/internal/extractor"
	"github.com/edu-moreno89/erado-export/internal/folder"
	"github.com/edu-moreno89/erado-export/internal/gmail"
	"github.com/edu-moreno89/erado-export/internal/metrics"
	"github.com/edu-moreno89/erado-export/internal/render"
	"github.com/edu-moreno89/erado-export/internal/session"
	"go.uber.org/zap"
)

// DefaultPrefix starts every exported file name
const DefaultPrefix = "erado"

// maxNameClashes bounds the numbered variants tried for one file name
const maxNameClashes = 1000

var (
	ErrNoTarget      = errors.New("no folder selected")
	ErrAuthRequired  = errors.New("authentication required: sign in to download attachments")
	ErrNoAttachments = errors.New("no attachments found")
)

// Journal records every export outcome
type Journal interface {
	InsertExport(e *db.Export) error
}

// Mailbox is the remote API surface used to resolve attachment bytes
type Mailbox interface {
	Locate(ctx context.Context, subject, sender string) (string, []gmail.PartAttachment, error)
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// Dialer opens a Mailbox authenticated with token
type Dialer func(ctx context.Context, token string) (Mailbox, error)

// Exporter writes rendered messages and their attachments into a session's
// target folder
type Exporter struct {
	renderer   render.Renderer
	logger     *zap.Logger
	prefix     string
	now        func() time.Time
	httpClient *http.Client
	dial       Dialer
	journal    Journal
	metrics    *metrics.Metrics
}

// New creates an Exporter using renderer for documents
func New(renderer render.Renderer, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		renderer:   renderer,
		logger:     logger,
		prefix:     DefaultPrefix,
		now:        time.Now,
		httpClient: http.DefaultClient,
	}
}

// SetPrefix sets the file name prefix
func (e *Exporter) SetPrefix(prefix string) {
	if prefix != "" {
		e.prefix = prefix
	}
}

// SetClock replaces the time source used for stamps
func (e *Exporter) SetClock(now func() time.Time) {
	e.now = now
}

// SetHTTPClient sets the client used for direct download links
func (e *Exporter) SetHTTPClient(c *http.Client) {
	e.httpClient = c
}

// SetDialer enables attachment resolution through the remote API
func (e *Exporter) SetDialer(d Dialer) {
	e.dial = d
}

// SetJournal enables the export journal
func (e *Exporter) SetJournal(j Journal) {
	e.journal = j
}

// SetMetrics enables export counters
func (e *Exporter) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// ExportDocument renders rec and writes it into the session folder
func (e *Exporter) ExportDocument(ctx context.Context, sess *session.Session, rec extractor.EmailRecord) ExportResult {
	release, err := sess.Begin(session.OpDocument)
	if err != nil {
		return failed(err)
	}
	defer release()

	return e.exportDocument(ctx, sess, rec.Normalize())
}

func (e *Exporter) exportDocument(ctx context.Context, sess *session.Session, rec extractor.EmailRecord) ExportResult {
	target, ok := sess.Folder()
	if !ok {
		return e.finish(sess, nil, db.KindDocument, rec, failed(ErrNoTarget), 0)
	}
	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	now := e.now()
	data, err := e.renderer.Render(rec, now)
	if err != nil {
		return e.finish(sess, target, db.KindDocument, rec, failed(err), 0)
	}

	name, err := writeUnique(target, DocumentFilename(e.prefix, rec.Subject, e.renderer.Extension(), now), data)
	if err != nil {
		return e.finish(sess, target, db.KindDocument, rec, failed(fmt.Errorf("failed to write %s: %w", name, err)), 0)
	}

	e.logger.Info("Document exported",
		zap.String("session", sess.ID),
		zap.String("filename", name),
		zap.Int("bytes", len(data)))
	return e.finish(sess, target, db.KindDocument, rec, succeeded(name), len(data))
}

// ExportAll writes the document, then every attachment when there are any
func (e *Exporter) ExportAll(ctx context.Context, sess *session.Session, token string, rec extractor.EmailRecord) AllResult {
	release, err := sess.Begin(session.OpExportAll)
	if err != nil {
		return AllResult{Document: failed(err), Error: err.Error()}
	}
	defer release()

	out := AllResult{Document: e.ExportDocument(ctx, sess, rec)}
	out.Success = out.Document.Success
	if !out.Success {
		out.Error = out.Document.Error
		return out
	}

	if len(rec.Attachments) > 0 {
		batch := e.ExportAttachments(ctx, sess, token, rec)
		out.Attachments = &batch
		if !batch.Success {
			out.Success = false
			out.Error = batch.Error
		}
	}
	return out
}

// SaveAttachment writes caller-supplied bytes for ref into the session folder
func (e *Exporter) SaveAttachment(ctx context.Context, sess *session.Session, ref extractor.AttachmentRef, data []byte) ExportResult {
	release, err := sess.Begin(session.OpSave)
	if err != nil {
		return failed(err)
	}
	defer release()

	ref = ref.Normalize()
	rec := extractor.EmailRecord{Subject: ref.Name}
	target, ok := sess.Folder()
	if !ok {
		return e.finish(sess, nil, db.KindAttachment, rec, failed(ErrNoTarget), 0)
	}
	return e.finish(sess, target, db.KindAttachment, rec, e.write(target, ref, data), len(data))
}

func (e *Exporter) write(target folder.Folder, ref extractor.AttachmentRef, data []byte) ExportResult {
	name, err := writeUnique(target, AttachmentFilename(e.prefix, ref.Name, e.now()), data)
	if err != nil {
		return failed(fmt.Errorf("failed to write %s: %w", name, err))
	}
	return succeeded(name)
}

// writeUnique writes data under name, or under name-1, name-2 and so on when
// a file of that name already exists. It returns the name used.
func writeUnique(target folder.Folder, name string, data []byte) (string, error) {
	candidate := name
	for n := 1; ; n++ {
		err := target.WriteFile(candidate, data)
		if err == nil || !errors.Is(err, fs.ErrExist) || n > maxNameClashes {
			return candidate, err
		}
		candidate = Numbered(name, n)
	}
}

// finish journals and counts a result and hands it back
func (e *Exporter) finish(sess *session.Session, target folder.Folder, kind string, rec extractor.EmailRecord, res ExportResult, size int) ExportResult {
	if res.Placeholder {
		kind = db.KindPlaceholder
	}

	outcome := metrics.OutcomeSuccess
	switch {
	case !res.Success:
		outcome = metrics.OutcomeFailure
	case res.Placeholder:
		outcome = metrics.OutcomePlaceholder
	}
	e.metrics.RecordExport(kind, outcome)
	if res.Success && kind == db.KindAttachment {
		e.metrics.RecordAttachmentBytes(size)
	}

	if !res.Success {
		e.logger.Warn("Export failed",
			zap.String("session", sess.ID),
			zap.String("kind", kind),
			zap.String("subject", rec.Subject),
			zap.Error(res.err))
	}

	if e.journal == nil {
		return res
	}
	entry := &db.Export{
		SessionID: sess.ID,
		Kind:      kind,
		Subject:   rec.Subject,
		Sender:    rec.Sender,
		Filename:  res.Filename,
		Success:   res.Success,
		Error:     res.Error,
		Size:      int64(size),
		CreatedAt: e.now().UTC(),
	}
	if target != nil {
		entry.Folder = target.Name()
	}
	if err := e.journal.InsertExport(entry); err != nil {
		// The file is already written; a journal failure must not undo that
		e.logger.Warn("Failed to journal export", zap.Error(err))
	}
	return res
}
