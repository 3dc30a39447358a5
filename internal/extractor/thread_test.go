package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threadHTML = `<html><body>
<h2 class="hP">Quarterly numbers</h2>
<div class="adn">
  <span class="gD" email="a@x.com" name="Ann">Ann</span>
  <div class="gH"><div class="gK"><span class="g3">Mon, Jan 6</span></div></div>
  <div class="a3s"><div dir="ltr"><b>First</b> message</div></div>
</div>
<div class="adn">
  <span class="gD" name="Ghost">Ghost</span>
  <div class="a3s">no sender here</div>
</div>
<div class="adn">
  <span class="gD" email="b@y.com" name="Ben">Ben</span>
  <div class="a3s">Second</div>
  <div class="aZo" download_url="text/csv:data.csv:https://mail.example.com/d?x=1"><span class="aV3">data.csv</span></div>
</div>
<div class="adn">
  <span class="gD" email="c@z.com" name="Cy">Cy</span>
  <p>This reply has no body container but plenty of text to preview anyway.</p>
</div>
</body></html>`

// TestEnumerateThread tests that entries with unresolvable senders are dropped
func TestEnumerateThread(t *testing.T) {
	ex := New(DefaultOptions())
	summaries := ex.EnumerateThread(mustDoc(t, threadHTML))

	require.Len(t, summaries, 3, "Ghost entry has no validated sender")

	assert.Equal(t, 0, summaries[0].Index)
	assert.Equal(t, 0, summaries[0].ElementIndex)
	assert.Equal(t, "a@x.com", summaries[0].Sender)
	assert.Equal(t, "Ann", summaries[0].SenderName)
	assert.Equal(t, "Mon, Jan 6", summaries[0].Date)
	assert.Equal(t, "Quarterly numbers", summaries[0].SubjectShared)
	assert.Equal(t, "First message...", summaries[0].BodyPreview)

	assert.Equal(t, 1, summaries[1].Index)
	assert.Equal(t, 2, summaries[1].ElementIndex)
	assert.Equal(t, 1, summaries[1].AttachmentCount)
	assert.Equal(t, DefaultDate, summaries[1].Date)

	assert.Equal(t, 3, summaries[2].ElementIndex)
	assert.True(t, strings.HasSuffix(summaries[2].BodyPreview, "..."))
	assert.Contains(t, summaries[2].BodyPreview, "no body container")
}

// TestEnumerateThread_KeepUnresolved tests the configurable drop behaviour
func TestEnumerateThread_KeepUnresolved(t *testing.T) {
	opts := DefaultOptions()
	opts.DropUnresolvedSenders = false

	summaries := New(opts).EnumerateThread(mustDoc(t, threadHTML))

	require.Len(t, summaries, 4)
	assert.Equal(t, DefaultSender, summaries[1].Sender)
	assert.Equal(t, "Ghost", summaries[1].SenderName)
}

// TestEnumerateThread_Empty tests that a view without messages is a success
func TestEnumerateThread_Empty(t *testing.T) {
	summaries := New(DefaultOptions()).EnumerateThread(mustDoc(t, openEmailHTML))

	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)
}

// TestSelectByIndex tests full extraction scoped to one thread entry
func TestSelectByIndex(t *testing.T) {
	ex := New(DefaultOptions())
	doc := mustDoc(t, threadHTML)

	first, err := ex.SelectByIndex(doc, 0)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly numbers", first.Subject)
	assert.Equal(t, "a@x.com", first.Sender)
	assert.Equal(t, "<b>First</b> message", first.Body, "Body keeps the inner markup")
	assert.Empty(t, first.Attachments)

	second, err := ex.SelectByIndex(doc, 1)
	require.NoError(t, err)
	assert.Equal(t, "b@y.com", second.Sender)
	assert.Equal(t, "Second", second.Body)
	require.Len(t, second.Attachments, 1)
	assert.Equal(t, "data.csv", second.Attachments[0].Name)
	assert.Equal(t, "text/csv", second.Attachments[0].MimeType)
	assert.Equal(t, "https://mail.example.com/d?x=1", second.Attachments[0].DownloadURL)

	third, err := ex.SelectByIndex(doc, 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultBody, third.Body)
}

// TestSelectByIndex_OutOfRange tests the not-found error
func TestSelectByIndex_OutOfRange(t *testing.T) {
	ex := New(DefaultOptions())
	doc := mustDoc(t, threadHTML)

	for _, i := range []int{-1, 3, 10} {
		_, err := ex.SelectByIndex(doc, i)
		assert.ErrorIs(t, err, ErrEmailNotFound)
	}
}
