package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/edu-moreno89/erado-export/internal/db"
	"github.com/edu-moreno89/erado-export/internal/extractor"
	"github.com/edu-moreno89/erado-export/internal/folder"
	"github.com/edu-moreno89/erado-export/internal/gmail"
	"github.com/edu-moreno89/erado-export/internal/session"
	"go.uber.org/zap"
)

// maxDownloadBytes caps a single direct download
const maxDownloadBytes = 64 << 20

var errUnresolvable = errors.New("attachment bytes unavailable")

// DownloadError is a non-success response from a direct download link
type DownloadError struct {
	Status int
	Body   string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed with status %d: %s", e.Status, e.Body)
}

// ExportAttachments writes every attachment of rec into the session folder,
// one at a time and in order. Bytes come from the remote API when token is
// set, else from direct download links. A ref with neither fails with
// ErrAuthRequired when there is no token and degrades to a text placeholder
// when there is.
func (e *Exporter) ExportAttachments(ctx context.Context, sess *session.Session, token string, rec extractor.EmailRecord) AttachmentBatch {
	release, err := sess.Begin(session.OpAttachments)
	if err != nil {
		return batchFailed(err)
	}
	defer release()

	rec = rec.Normalize()
	if len(rec.Attachments) == 0 {
		return batchFailed(ErrNoAttachments)
	}
	target, ok := sess.Folder()
	if !ok {
		return batchFailed(ErrNoTarget)
	}

	var mb Mailbox
	refs := rec.Attachments
	if token != "" && e.dial != nil {
		mb, err = e.dial(ctx, token)
		if err != nil {
			e.logger.Warn("Remote mailbox unavailable", zap.Error(err))
			mb = nil
		} else {
			refs = e.resolveRemote(ctx, mb, rec)
		}
	}

	batch := AttachmentBatch{Results: make([]ExportResult, 0, len(refs))}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			batch.add(failed(err))
			continue
		}
		res, size := e.exportAttachment(ctx, target, mb, token, ref)
		batch.add(e.finish(sess, target, db.KindAttachment, rec, res, size))
	}
	batch.finish()

	e.logger.Info("Attachments exported",
		zap.String("session", sess.ID),
		zap.Int("total", batch.Total),
		zap.Int("saved", batch.Saved),
		zap.Int("placeholders", batch.Placeholders),
		zap.Int("failed", batch.Failed))
	return batch
}

func (e *Exporter) exportAttachment(ctx context.Context, target folder.Folder, mb Mailbox, token string, ref extractor.AttachmentRef) (ExportResult, int) {
	data, err := e.fetch(ctx, mb, ref)
	switch {
	case errors.Is(err, errUnresolvable) && token == "":
		return failed(ErrAuthRequired), 0
	case errors.Is(err, errUnresolvable):
		return e.placeholder(target, ref)
	case err != nil:
		return failed(fmt.Errorf("%s: %w", ref.Name, err)), 0
	}
	return e.write(target, ref, data), len(data)
}

// fetch resolves the bytes of ref: remote API first, then the direct link
func (e *Exporter) fetch(ctx context.Context, mb Mailbox, ref extractor.AttachmentRef) ([]byte, error) {
	if mb != nil && ref.AttachmentID != "" && ref.MessageID != "" {
		data, err := mb.GetAttachment(ctx, ref.MessageID, ref.AttachmentID)
		if err != nil {
			return nil, err
		}
		if ref.SizeBytes > 0 && int64(len(data)) != ref.SizeBytes {
			e.logger.Warn("Attachment size mismatch",
				zap.String("name", ref.Name),
				zap.Int64("reported", ref.SizeBytes),
				zap.Int("decoded", len(data)))
		}
		return data, nil
	}
	if ref.DownloadURL != "" {
		return e.download(ctx, ref.DownloadURL)
	}
	return nil, errUnresolvable
}

func (e *Exporter) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid download url: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &DownloadError{Status: resp.StatusCode, Body: string(body)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("download exceeds %d bytes", maxDownloadBytes)
	}
	return data, nil
}

func (e *Exporter) placeholder(target folder.Folder, ref extractor.AttachmentRef) (ExportResult, int) {
	content := fmt.Sprintf("Placeholder for attachment: %s\nSize: %s\nType: %s\n\n"+
		"The attachment content could not be retrieved.\n", ref.Name, ref.Size, ref.MimeType)
	name, err := writeUnique(target, PlaceholderFilename(e.prefix, ref.Name, e.now()), []byte(content))
	if err != nil {
		return failed(fmt.Errorf("failed to write %s: %w", name, err)), 0
	}
	res := succeeded(name)
	res.Placeholder = true
	return res, len(content)
}

// resolveRemote fills AttachmentID and MessageID from the remote copy of rec.
// Lookup failures leave the refs unchanged.
func (e *Exporter) resolveRemote(ctx context.Context, mb Mailbox, rec extractor.EmailRecord) []extractor.AttachmentRef {
	refs := append([]extractor.AttachmentRef(nil), rec.Attachments...)

	pending := false
	for _, ref := range refs {
		if ref.AttachmentID == "" || ref.MessageID == "" {
			pending = true
		}
	}
	if !pending {
		return refs
	}

	subject, sender := rec.Subject, rec.Sender
	if subject == extractor.DefaultSubject {
		subject = ""
	}
	if sender == extractor.DefaultSender {
		sender = ""
	}
	if subject == "" && sender == "" {
		return refs
	}

	messageID, parts, err := mb.Locate(ctx, subject, sender)
	if err != nil {
		e.logger.Warn("Failed to locate message remotely",
			zap.String("subject", rec.Subject),
			zap.Error(err))
		return refs
	}

	taken := make(map[string]bool)
	for _, ref := range refs {
		if ref.MessageID == messageID && ref.AttachmentID != "" {
			taken[ref.AttachmentID] = true
		}
	}
	for i, ref := range refs {
		if ref.AttachmentID != "" && ref.MessageID != "" {
			continue
		}
		part, ok := gmail.MatchAttachment(parts, ref.Name, taken)
		if !ok {
			continue
		}
		taken[part.AttachmentID] = true
		refs[i].AttachmentID = part.AttachmentID
		refs[i].MessageID = messageID
		refs[i].SizeBytes = part.Size
		if ref.MimeType == extractor.DefaultMimeType && part.MimeType != "" {
			refs[i].MimeType = part.MimeType
		}
	}
	return refs
}
