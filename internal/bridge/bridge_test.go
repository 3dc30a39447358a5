package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edu-moreno89/erado-export/internal/auth"
	"github.com/edu-moreno89/erado-export/internal/db"
	"github.com/edu-moreno89/erado-export/internal/exporter"
	"github.com/edu-moreno89/erado-export/internal/extractor"
	"github.com/edu-moreno89/erado-export/internal/folder"
	"github.com/edu-moreno89/erado-export/internal/metrics"
	"github.com/edu-moreno89/erado-export/internal/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const threadPage = `<html><body>
<h2 class="hP">Quarterly numbers</h2>
<div class="adn">
  <span class="gD" email="ann@acme.io" name="Ann">Ann</span>
  <div class="gH"><div class="gK"><span class="g3">Mon, Jan 6</span></div></div>
  <div class="a3s"><div dir="ltr">First message</div></div>
</div>
<div class="adn">
  <span class="gD" email="ben@acme.io" name="Ben">Ben</span>
  <div class="a3s">Second message</div>
  <div class="aZo"><span class="aV3">data.csv</span></div>
</div>
</body></html>`

const pageURL = "https://mail.example.com/mail/u/0/#inbox/abc"

var fixedTime = time.Date(2025, time.March, 3, 10, 15, 0, 0, time.UTC)

type stubRenderer struct{}

func (stubRenderer) Render(rec extractor.EmailRecord, at time.Time) ([]byte, error) {
	return []byte("doc:" + rec.Subject), nil
}
func (stubRenderer) Extension() string   { return "pdf" }
func (stubRenderer) ContentType() string { return "application/pdf" }

type fixture struct {
	bridge  *Bridge
	dir     string
	journal *db.DB
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	journal := db.SetupTestDB(t)
	t.Cleanup(func() { db.CleanupTestDB(t, journal) })
	m := metrics.New()

	exp := exporter.New(stubRenderer{}, zap.NewNop())
	exp.SetClock(func() time.Time { return fixedTime })
	exp.SetJournal(journal)
	exp.SetMetrics(m)

	b := New(Deps{
		Exporter: exp,
		Picker:   folder.DirPicker{Default: dir},
		Journal:  journal,
		Metrics:  m,
	})
	return &fixture{bridge: b, dir: dir, journal: journal, metrics: m}
}

func (f *fixture) send(t *testing.T, sessionID string, req Request) Response {
	t.Helper()
	return f.bridge.Send(context.Background(), Envelope{SessionID: sessionID, Request: req})
}

func TestDecode(t *testing.T) {
	tests := []struct {
		raw  string
		want Request
	}{
		{`{"action":"getOpenEmail","html":"<p>x</p>","url":"u"}`, &GetOpenEmail{Page{HTML: "<p>x</p>", URL: "u"}}},
		{`{"action":"getAllEmailsInThread","html":"h"}`, &GetAllEmailsInThread{Page{HTML: "h"}}},
		{`{"action":"getSelectedEmailData","html":"h","index":2}`, &GetSelectedEmailData{Page: Page{HTML: "h"}, Index: 2}},
		{`{"action":"generatePDF","emailData":{"subject":"Hi"}}`, &GeneratePDF{Selection{Email: &extractor.EmailRecord{Subject: "Hi"}}}},
		{`{"action":"selectFolder","path":"/tmp/out"}`, &SelectFolder{Path: "/tmp/out"}},
		{`{"action":"getFolderStatus"}`, &GetFolderStatus{}},
		{`{"action":"saveAttachmentToFolder","attachment":{"name":"a.txt"},"data":"aGk="}`,
			&SaveAttachmentToFolder{Attachment: extractor.AttachmentRef{Name: "a.txt"}, Data: "aGk="}},
		{`{"action":"downloadAttachments","index":1}`, &DownloadAttachments{Selection{Index: intPtr(1)}}},
		{`{"action":"exportAll","url":"u"}`, &ExportAll{Selection{Page: Page{URL: "u"}}}},
		{`{"action":"authenticate"}`, &Authenticate{}},
		{`{"action":"setToken","token":"t0k"}`, &SetToken{Token: "t0k"}},
		{`{"action":"getExportHistory","query":"invoice","limit":5}`, &GetExportHistory{Query: "invoice", Limit: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.want.Action(), func(t *testing.T) {
			env, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.Request)
		})
	}
}

func TestDecode_SessionAndTarget(t *testing.T) {
	env, err := Decode([]byte(`{"action":"setToken","sessionId":"tab-7","token":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "tab-7", env.SessionID)
	assert.Equal(t, Background, TargetOf(env.Request))

	env, err = Decode([]byte(`{"action":"exportAll"}`))
	require.NoError(t, err)
	assert.Equal(t, Content, TargetOf(env.Request))
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{"action":"formatDisk"}`))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = Decode([]byte(`{"action":`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"action":"getSelectedEmailData","index":"two"}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSendRaw_UnknownAction(t *testing.T) {
	f := newFixture(t)

	resp := f.bridge.SendRaw(context.Background(), []byte(`{"action":"formatDisk"}`))

	out := resp.Outcome()
	assert.False(t, out.Success)
	assert.Equal(t, "Unknown action", out.Error)
}

func TestSend_NilRequest(t *testing.T) {
	f := newFixture(t)

	out := f.bridge.Send(context.Background(), Envelope{}).Outcome()
	assert.False(t, out.Success)
	assert.Equal(t, "Unknown action", out.Error)
}

func TestSend_GetOpenEmail(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "tab", &GetOpenEmail{Page{HTML: threadPage, URL: pageURL}})

	require.IsType(t, EmailResponse{}, resp)
	email := resp.(EmailResponse)
	assert.True(t, email.Success)
	assert.Equal(t, "Quarterly numbers", email.Email.Subject)
	assert.Equal(t, pageURL, email.Email.SourceURL)
}

func TestSend_Thread(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "tab", &GetAllEmailsInThread{Page{HTML: threadPage, URL: pageURL}})

	require.IsType(t, ThreadResponse{}, resp)
	thread := resp.(ThreadResponse)
	require.Len(t, thread.Emails, 2)
	assert.Equal(t, "ann@acme.io", thread.Emails[0].Sender)
	assert.Equal(t, 1, thread.Emails[1].AttachmentCount)
	assert.Equal(t, session.Idle, f.bridge.Sessions.Get("tab").State(session.OpThread))
}

func TestSend_ThreadInProgress(t *testing.T) {
	f := newFixture(t)
	release, err := f.bridge.Sessions.Get("tab").Begin(session.OpThread)
	require.NoError(t, err)
	defer release()

	out := f.send(t, "tab", &GetAllEmailsInThread{Page{HTML: threadPage}}).Outcome()
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, session.ErrInProgress.Error())
}

func TestSend_GetSelectedEmailData(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "tab", &GetSelectedEmailData{Page: Page{HTML: threadPage, URL: pageURL}, Index: 1})
	require.IsType(t, EmailResponse{}, resp)
	rec := resp.(EmailResponse).Email
	assert.Equal(t, "ben@acme.io", rec.Sender)
	require.Len(t, rec.Attachments, 1)
	assert.Equal(t, "data.csv", rec.Attachments[0].Name)

	out := f.send(t, "tab", &GetSelectedEmailData{Page: Page{HTML: threadPage}, Index: 9}).Outcome()
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, extractor.ErrEmailNotFound.Error())
}

func TestSend_Folder(t *testing.T) {
	f := newFixture(t)
	other := t.TempDir()

	resp := f.send(t, "tab", &GetFolderStatus{})
	assert.Equal(t, FolderResponse{Status: Status{Success: true}}, resp)

	resp = f.send(t, "tab", &SelectFolder{Path: other})
	require.IsType(t, FolderResponse{}, resp)
	assert.True(t, resp.(FolderResponse).HasFolder)

	resp = f.send(t, "tab", &GetFolderStatus{})
	require.IsType(t, FolderResponse{}, resp)
	status := resp.(FolderResponse)
	assert.True(t, status.HasFolder)
	assert.Equal(t, other, status.FolderName)

	last, err := f.journal.GetSetting(lastFolderSetting)
	require.NoError(t, err)
	assert.Empty(t, last, "Folders are not persisted unless asked to")

	// Sessions do not share folders
	resp = f.send(t, "other-tab", &GetFolderStatus{})
	assert.False(t, resp.(FolderResponse).HasFolder)
	assert.Equal(t, 1, f.bridge.Sessions.Len(), "Status checks do not create sessions")
}

func TestSend_SelectFolderMissing(t *testing.T) {
	f := newFixture(t)

	out := f.send(t, "tab", &SelectFolder{Path: filepath.Join(f.dir, "nope")}).Outcome()
	assert.False(t, out.Success)
}

func TestSend_GeneratePDF(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "tab", &GeneratePDF{Selection{Email: &extractor.EmailRecord{Subject: "Invoice #42"}}})

	require.IsType(t, DocumentResponse{}, resp)
	doc := resp.(DocumentResponse)
	require.True(t, doc.Success, doc.Error)
	assert.Equal(t, "erado-email-Invoice_#42-03-03-2025_101500_000.pdf", doc.Filename)

	data, err := os.ReadFile(filepath.Join(f.dir, doc.Filename))
	require.NoError(t, err)
	assert.Equal(t, "doc:Invoice #42", string(data))

	history, err := f.journal.ListSessionExports("tab", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, db.KindDocument, history[0].Kind)
}

func TestSend_GeneratePDFFromThreadIndex(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "tab", &GeneratePDF{Selection{Page: Page{HTML: threadPage}, Index: intPtr(0)}})

	doc := resp.(DocumentResponse)
	require.True(t, doc.Success, doc.Error)
	assert.Contains(t, doc.Filename, "Quarterly_numbers")
}

func TestSend_GeneratePDFNoFolder(t *testing.T) {
	f := newFixture(t)
	f.bridge.Picker = folder.DirPicker{}

	out := f.send(t, "tab", &GeneratePDF{Selection{Email: &extractor.EmailRecord{}}}).Outcome()
	assert.False(t, out.Success)
	assert.Equal(t, exporter.ErrNoTarget.Error(), out.Error)
}

func TestSend_LastFolderRemembered(t *testing.T) {
	f := newFixture(t)
	f.bridge.RememberFolder = true
	f.bridge.Picker = folder.DirPicker{}
	other := t.TempDir()

	require.True(t, f.send(t, "tab", &SelectFolder{Path: other}).Outcome().Success)
	last, err := f.journal.GetSetting(lastFolderSetting)
	require.NoError(t, err)
	assert.Equal(t, other, last)

	resp := f.send(t, "reloaded-tab", &GeneratePDF{Selection{Email: &extractor.EmailRecord{Subject: "x"}}})
	doc := resp.(DocumentResponse)
	require.True(t, doc.Success, doc.Error)
	_, err = os.Stat(filepath.Join(other, doc.Filename))
	assert.NoError(t, err)
}

func TestSend_LastFolderIgnoredByDefault(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.journal.SetSetting(lastFolderSetting, f.dir))
	f.bridge.Picker = folder.DirPicker{}

	out := f.send(t, "tab", &GeneratePDF{Selection{Email: &extractor.EmailRecord{Subject: "x"}}}).Outcome()
	assert.False(t, out.Success)
	assert.Equal(t, exporter.ErrNoTarget.Error(), out.Error)
}

func TestSend_SaveAttachmentToFolder(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "tab", &SaveAttachmentToFolder{
		Attachment: extractor.AttachmentRef{Name: "notes.txt"},
		Data:       base64.StdEncoding.EncodeToString([]byte("hello")),
	})

	doc := resp.(DocumentResponse)
	require.True(t, doc.Success, doc.Error)
	assert.Equal(t, "erado-notes-03-03-2025_101500_000.txt", doc.Filename)
	data, err := os.ReadFile(filepath.Join(f.dir, doc.Filename))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	out := f.send(t, "tab", &SaveAttachmentToFolder{Data: "%%%"}).Outcome()
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "invalid attachment data")
}

func TestSend_DownloadAttachmentsNeedsAuth(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "tab", &DownloadAttachments{Selection{Page: Page{HTML: threadPage}, Index: intPtr(1)}})

	require.IsType(t, AttachmentsResponse{}, resp)
	batch := resp.(AttachmentsResponse)
	assert.False(t, batch.Success)
	assert.Equal(t, exporter.ErrAuthRequired.Error(), batch.Error)
}

func TestSend_ExportAllWithToken(t *testing.T) {
	f := newFixture(t)
	f.send(t, "tab", &SetToken{Token: "t0k"})

	resp := f.send(t, "tab", &ExportAll{Selection{Page: Page{HTML: threadPage}, Index: intPtr(1)}})

	require.IsType(t, ExportAllResponse{}, resp)
	all := resp.(ExportAllResponse)
	require.True(t, all.Success, all.Error)
	require.NotNil(t, all.Attachments)
	assert.Equal(t, 1, all.Attachments.Placeholders, "No dialer, so the attachment becomes a placeholder")
}

func TestSend_Authenticate(t *testing.T) {
	f := newFixture(t)

	out := f.send(t, "", &Authenticate{}).Outcome()
	assert.False(t, out.Success)
	assert.Equal(t, ErrAuthNotConfigured.Error(), out.Error)

	f.bridge.Provider = auth.ProviderFunc(func(ctx context.Context) (string, error) {
		return "fresh-token", nil
	})
	resp := f.send(t, "", &Authenticate{})
	assert.Equal(t, AuthResponse{Status: Status{Success: true}, Authenticated: true}, resp)

	token, ok := f.bridge.Credentials.Token()
	assert.True(t, ok)
	assert.Equal(t, "fresh-token", token)

	f.bridge.Provider = auth.ProviderFunc(func(ctx context.Context) (string, error) {
		return "", errors.New("consent denied")
	})
	out = f.send(t, "", &Authenticate{}).Outcome()
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "consent denied")
}

func TestSend_AuthenticateShared(t *testing.T) {
	f := newFixture(t)
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	f.bridge.Provider = auth.ProviderFunc(func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return "shared-token", nil
	})

	var wg sync.WaitGroup
	results := make([]Response, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = f.send(t, "", &Authenticate{})
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = f.send(t, "", &Authenticate{})
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "One consent flow for concurrent requests")
	for _, r := range results {
		assert.True(t, r.Outcome().Success)
	}
}

// A caller that goes away does not cancel the sign-in others are waiting on
func TestSend_AuthenticateCallerCancelled(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.bridge.Provider = auth.ProviderFunc(func(ctx context.Context) (string, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "shared-token", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan Response, 1)
	go func() {
		first <- f.bridge.Send(ctx, Envelope{Request: &Authenticate{}})
	}()
	<-started

	second := make(chan Response, 1)
	go func() {
		second <- f.send(t, "", &Authenticate{})
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	out := (<-first).Outcome()
	assert.False(t, out.Success)
	assert.Equal(t, context.Canceled.Error(), out.Error)

	close(release)
	assert.True(t, (<-second).Outcome().Success)
	token, ok := f.bridge.Credentials.Token()
	assert.True(t, ok)
	assert.Equal(t, "shared-token", token)
}

func TestSend_SetToken(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "", &SetToken{Token: "abc"})
	assert.True(t, resp.(AuthResponse).Authenticated)

	resp = f.send(t, "", &SetToken{})
	assert.False(t, resp.(AuthResponse).Authenticated)
	_, ok := f.bridge.Credentials.Token()
	assert.False(t, ok)
}

func TestSend_GetExportHistory(t *testing.T) {
	f := newFixture(t)
	db.InsertTestExports(t, f.journal, []*db.Export{
		db.CreateTestExport("tab", "Invoice March", "a.pdf", fixedTime),
		db.CreateTestExport("tab", "Team lunch", "b.pdf", fixedTime.Add(time.Minute)),
	})

	resp := f.send(t, "", &GetExportHistory{Query: "invoice"})
	require.IsType(t, HistoryResponse{}, resp)
	history := resp.(HistoryResponse)
	require.Len(t, history.Exports, 1)
	assert.Equal(t, "Invoice March", history.Exports[0].Subject)

	resp = f.send(t, "", &GetExportHistory{})
	assert.Len(t, resp.(HistoryResponse).Exports, 2)

	resp = f.send(t, "", &GetExportHistory{Query: "nothing-matches"})
	assert.NotNil(t, resp.(HistoryResponse).Exports)

	f.bridge.Journal = nil
	out := f.send(t, "", &GetExportHistory{}).Outcome()
	assert.Equal(t, ErrHistoryDisabled.Error(), out.Error)
}

func TestSend_RecoversPanic(t *testing.T) {
	f := newFixture(t)
	f.bridge.Provider = auth.ProviderFunc(func(ctx context.Context) (string, error) {
		panic("boom")
	})

	out := f.send(t, "", &Authenticate{}).Outcome()
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "boom")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BridgeRequestsTotal.WithLabelValues(ActionAuthenticate, metrics.OutcomeFailure)))
}

func TestSend_Metrics(t *testing.T) {
	f := newFixture(t)

	f.send(t, "tab", &GetFolderStatus{})
	f.send(t, "tab", &GetFolderStatus{})

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.BridgeRequestsTotal.WithLabelValues(ActionGetFolderStatus, metrics.OutcomeSuccess)))
}

func TestResponseJSON(t *testing.T) {
	data, err := json.Marshal(FolderResponse{Status: Status{Success: true}, HasFolder: true, FolderName: "/out"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"hasFolder":true,"folderName":"/out"}`, string(data))

	data, err = json.Marshal(Failure(ErrUnknownAction))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"Unknown action"}`, string(data))
}

func intPtr(i int) *int { return &i }
