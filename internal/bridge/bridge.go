package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/edu-moreno89/erado-export/internal/auth"
	"github.com/edu-moreno89/erado-export/internal/db"
	"github.com/edu-moreno89/erado-export/internal/exporter"
	"github.com/edu-moreno89/erado-export/internal/extractor"
	"github.com/edu-moreno89/erado-export/internal/folder"
	"github.com/edu-moreno89/erado-export/internal/metrics"
	"github.com/edu-moreno89/erado-export/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	lastFolderSetting   = "last_folder"
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

var (
	ErrAuthNotConfigured = errors.New("authentication is not configured")
	ErrHistoryDisabled   = errors.New("export history is disabled")
)

// Deps wires a Bridge. Journal, Provider and Metrics are optional.
// RememberFolder lets a session without a folder reuse the last folder picked
// by any session, as stored in the journal.
type Deps struct {
	Sessions    *session.Registry
	Credentials *auth.Credentials
	Provider    auth.Provider
	Extractor   *extractor.Extractor
	Exporter    *exporter.Exporter
	Picker      folder.Picker
	Journal     *db.DB
	Metrics     *metrics.Metrics
	Logger      *zap.Logger

	RememberFolder bool
}

// Bridge routes requests to the content or background side
type Bridge struct {
	Deps

	// concurrent authenticate requests share one consent flow
	signin singleflight.Group
}

// New creates a Bridge
func New(deps Deps) *Bridge {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewRegistry()
	}
	if deps.Credentials == nil {
		deps.Credentials = &auth.Credentials{}
	}
	if deps.Extractor == nil {
		deps.Extractor = extractor.New(extractor.DefaultOptions())
	}
	return &Bridge{Deps: deps}
}

// Send handles one request. It never panics; every failure becomes a reply
// with success=false.
func (b *Bridge) Send(ctx context.Context, env Envelope) (resp Response) {
	start := time.Now()
	action := "invalid"
	if env.Request != nil {
		action = env.Request.Action()
	}

	defer func() {
		if r := recover(); r != nil {
			b.Logger.Error("Bridge handler panicked",
				zap.String("action", action),
				zap.Any("panic", r),
				zap.Stack("stack"))
			resp = Failure(fmt.Errorf("internal error: %v", r))
		}
		out := resp.Outcome()
		b.Metrics.RecordBridgeRequest(action, out.Success, time.Since(start).Seconds())
		b.Logger.Debug("Bridge request handled",
			zap.String("action", action),
			zap.String("session", env.SessionID),
			zap.Bool("success", out.Success),
			zap.Duration("duration", time.Since(start)))
	}()

	if env.Request == nil {
		return Failure(ErrUnknownAction)
	}

	switch env.Request.target() {
	case Background:
		return b.background(ctx, env.Request)
	default:
		return b.content(ctx, env.SessionID, env.Request)
	}
}

// SendRaw decodes and handles a wire message
func (b *Bridge) SendRaw(ctx context.Context, raw []byte) Response {
	env, err := Decode(raw)
	if err != nil {
		b.Metrics.RecordBridgeRequest("invalid", false, 0)
		if errors.Is(err, ErrUnknownAction) {
			return Failure(ErrUnknownAction)
		}
		return Failure(err)
	}
	return b.Send(ctx, env)
}

// content handles page requests. Only requests that keep state create the
// session for id.
func (b *Bridge) content(ctx context.Context, id string, req Request) Response {
	switch r := req.(type) {
	case *GetOpenEmail:
		rec, report := b.Extractor.ExtractWithReport(b.document(r.Page))
		if report.Err != nil {
			return Failure(report.Err)
		}
		return EmailResponse{Status: ok(), Email: rec}

	case *GetAllEmailsInThread:
		release, err := b.Sessions.Get(id).Begin(session.OpThread)
		if err != nil {
			return Failure(err)
		}
		defer release()
		return ThreadResponse{Status: ok(), Emails: b.Extractor.EnumerateThread(b.document(r.Page))}

	case *GetSelectedEmailData:
		rec, err := b.Extractor.SelectByIndex(b.document(r.Page), r.Index)
		if err != nil {
			return Failure(err)
		}
		return EmailResponse{Status: ok(), Email: rec}

	case *GeneratePDF:
		rec, err := b.record(r.Selection)
		if err != nil {
			return Failure(err)
		}
		sess := b.Sessions.Get(id)
		b.ensureFolder(ctx, sess)
		return DocumentResponse{b.Exporter.ExportDocument(ctx, sess, rec)}

	case *SelectFolder:
		if b.Picker == nil {
			return Failure(folder.ErrNoneSelected)
		}
		f, err := b.Picker.Pick(ctx, r.Path)
		if err != nil {
			return Failure(err)
		}
		sess := b.Sessions.Get(id)
		sess.SetFolder(f)
		b.rememberFolder(f)
		b.Logger.Info("Folder selected", zap.String("session", sess.ID), zap.String("folder", f.Name()))
		return FolderResponse{Status: ok(), HasFolder: true, FolderName: f.Name()}

	case *GetFolderStatus:
		resp := FolderResponse{Status: ok()}
		if sess, found := b.Sessions.Lookup(id); found {
			if f, has := sess.Folder(); has {
				resp.HasFolder, resp.FolderName = true, f.Name()
			}
		}
		return resp

	case *SaveAttachmentToFolder:
		data, err := base64.StdEncoding.DecodeString(r.Data)
		if err != nil {
			return Failure(fmt.Errorf("invalid attachment data: %w", err))
		}
		sess := b.Sessions.Get(id)
		b.ensureFolder(ctx, sess)
		return DocumentResponse{b.Exporter.SaveAttachment(ctx, sess, r.Attachment, data)}

	case *DownloadAttachments:
		rec, err := b.record(r.Selection)
		if err != nil {
			return Failure(err)
		}
		sess := b.Sessions.Get(id)
		b.ensureFolder(ctx, sess)
		token, _ := b.Credentials.Token()
		return AttachmentsResponse{b.Exporter.ExportAttachments(ctx, sess, token, rec)}

	case *ExportAll:
		rec, err := b.record(r.Selection)
		if err != nil {
			return Failure(err)
		}
		sess := b.Sessions.Get(id)
		b.ensureFolder(ctx, sess)
		token, _ := b.Credentials.Token()
		return ExportAllResponse{b.Exporter.ExportAll(ctx, sess, token, rec)}

	case *Authenticate, *SetToken, *GetExportHistory:
		return b.background(ctx, req)

	default:
		return Failure(ErrUnknownAction)
	}
}

func (b *Bridge) background(ctx context.Context, req Request) Response {
	switch r := req.(type) {
	case *Authenticate:
		if b.Provider == nil {
			return Failure(ErrAuthNotConfigured)
		}
		// The flow outlives any one caller; each caller stops waiting on its
		// own cancellation.
		flow := context.WithoutCancel(ctx)
		ch := b.signin.DoChan("token", func() (interface{}, error) {
			return b.Provider.Token(flow)
		})
		select {
		case <-ctx.Done():
			return Failure(ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				return Failure(fmt.Errorf("authentication failed: %w", res.Err))
			}
			b.Credentials.Set(res.Val.(string))
			b.Logger.Info("Authenticated", zap.Bool("shared", res.Shared))
			return AuthResponse{Status: ok(), Authenticated: true}
		}

	case *SetToken:
		b.Credentials.Set(r.Token)
		return AuthResponse{Status: ok(), Authenticated: r.Token != ""}

	case *GetExportHistory:
		if b.Journal == nil {
			return Failure(ErrHistoryDisabled)
		}
		limit := r.Limit
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
		exports, err := b.Journal.SearchExports(r.Query, limit)
		if err != nil {
			return Failure(err)
		}
		if exports == nil {
			exports = []*db.Export{}
		}
		return HistoryResponse{Status: ok(), Exports: exports}

	default:
		return Failure(ErrUnknownAction)
	}
}

func (b *Bridge) document(p Page) *extractor.Document {
	doc, err := extractor.NewDocumentFromString(p.HTML, p.URL)
	if err != nil {
		b.Logger.Warn("Failed to parse page", zap.Error(err))
		return nil
	}
	return doc
}

// record resolves the message a selection refers to
func (b *Bridge) record(sel Selection) (extractor.EmailRecord, error) {
	if sel.Email != nil {
		return sel.Email.Normalize(), nil
	}
	doc := b.document(sel.Page)
	if sel.Index != nil {
		return b.Extractor.SelectByIndex(doc, *sel.Index)
	}
	rec, report := b.Extractor.ExtractWithReport(doc)
	return rec, report.Err
}

// ensureFolder picks the default folder, or the last used one when
// RememberFolder is set, for a session without a folder. Failure leaves the
// session without a folder.
func (b *Bridge) ensureFolder(ctx context.Context, sess *session.Session) {
	if _, has := sess.Folder(); has || b.Picker == nil {
		return
	}
	f, err := b.Picker.Pick(ctx, "")
	if errors.Is(err, folder.ErrNoneSelected) && b.RememberFolder && b.Journal != nil {
		last, lerr := b.Journal.GetSetting(lastFolderSetting)
		if lerr == nil && last != "" {
			f, err = b.Picker.Pick(ctx, last)
		}
	}
	if err != nil {
		b.Logger.Debug("No folder picked", zap.String("session", sess.ID), zap.Error(err))
		return
	}
	sess.SetFolder(f)
}

func (b *Bridge) rememberFolder(f folder.Folder) {
	if !b.RememberFolder || b.Journal == nil {
		return
	}
	if err := b.Journal.SetSetting(lastFolderSetting, f.Name()); err != nil {
		b.Logger.Warn("Failed to remember folder", zap.Error(err))
	}
}
