package extractor

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

const (
	previewLen         = 100
	minFallbackPreview = 50
)

type threadEntry struct {
	summary ThreadSummary
	el      *goquery.Selection
}

// EnumerateThread lists the messages of the open conversation in display
// order. An empty thread yields an empty slice, not an error.
func (e *Extractor) EnumerateThread(doc *Document) []ThreadSummary {
	entries := e.threadEntries(doc)
	out := make([]ThreadSummary, 0, len(entries))
	for _, en := range entries {
		out = append(out, en.summary)
	}
	return out
}

// SelectByIndex extracts the full record for the i-th entry returned by
// EnumerateThread.
func (e *Extractor) SelectByIndex(doc *Document, i int) (EmailRecord, error) {
	entries := e.threadEntries(doc)
	if i < 0 || i >= len(entries) {
		return EmailRecord{}, fmt.Errorf("%w: index %d of %d", ErrEmailNotFound, i, len(entries))
	}
	en := entries[i]

	body, _ := FirstMatch(SelectorHTML(threadBodyLTRSelector), SelectorHTML(threadBodySelector))(en.el)

	name := FirstMatch(
		SelectorText(threadAttachmentName),
		Each(attachmentNameSelectors, SelectorText),
	)
	atts := []AttachmentRef{}
	en.el.Find(threadAttachmentSelector).Each(func(_ int, c *goquery.Selection) {
		atts = append(atts, attachmentFrom(c, name, doc.SourceURL))
	})

	rec := EmailRecord{
		Subject:     en.summary.SubjectShared,
		Sender:      en.summary.Sender,
		Date:        en.summary.Date,
		Body:        body,
		Attachments: atts,
		SourceURL:   doc.SourceURL,
	}
	return rec.Normalize(), nil
}

func (e *Extractor) threadEntries(doc *Document) []threadEntry {
	if doc == nil {
		return nil
	}
	root := doc.Root()

	subject, ok := e.subject(root)
	if !ok {
		subject = DefaultSubject
	}

	var entries []threadEntry
	root.Find(e.opts.MessageSelector).Each(func(i int, el *goquery.Selection) {
		s := summarize(el, i, subject)
		if e.opts.DropUnresolvedSenders && s.Sender == DefaultSender {
			return
		}
		s.Index = len(entries)
		entries = append(entries, threadEntry{summary: s, el: el})
	})
	return entries
}

func summarize(el *goquery.Selection, elementIndex int, subject string) ThreadSummary {
	s := ThreadSummary{
		ElementIndex:    elementIndex,
		Sender:          DefaultSender,
		SenderName:      DefaultSenderName,
		Date:            DefaultDate,
		SubjectShared:   subject,
		BodyPreview:     DefaultPreview,
		AttachmentCount: el.Find(threadAttachmentSelector).Length(),
	}

	if v, ok := Validated(SelectorAttr(threadSenderSelector, "email"), isSenderAddress)(el); ok {
		s.Sender = v
	}
	if v, ok := SelectorAttr(threadSenderSelector, "name")(el); ok {
		s.SenderName = v
	}
	if v, ok := SelectorText(threadDateSelector)(el); ok {
		s.Date = v
	}

	if v, ok := SelectorText(threadBodySelector)(el); ok {
		s.BodyPreview = truncateRunes(v, previewLen) + "..."
	} else if text := collapse(el.Text()); len(text) > minFallbackPreview {
		s.BodyPreview = truncateRunes(text, previewLen) + "..."
	}
	return s
}
