package extractor

import (
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrNilDocument   = errors.New("no document to extract from")
	ErrEmailNotFound = errors.New("selected email not found")
)

const (
	maxAttachmentNameLen = 100
	shortTextNameLen     = 50
)

// Options tune the heuristics
type Options struct {
	// NoiseDomains are dropped when scanning page text for a sender
	NoiseDomains []string
	// MessageSelector finds message containers in a thread view
	MessageSelector string
	// DropUnresolvedSenders removes thread entries whose sender could not be validated
	DropUnresolvedSenders bool
}

// DefaultOptions returns the settings matching the stock webmail markup
func DefaultOptions() Options {
	return Options{
		NoiseDomains:          DefaultNoiseDomains,
		MessageSelector:       threadMessageSelector,
		DropUnresolvedSenders: true,
	}
}

// Report is the auxiliary channel of an extraction: which fields fell back
// to defaults and whether extraction failed outright.
type Report struct {
	Misses []string
	Err    error
}

// Extractor reads an EmailRecord out of a page snapshot
type Extractor struct {
	opts    Options
	subject Strategy
	sender  Strategy
	date    Strategy
	body    Strategy
}

// New builds an Extractor with the given options
func New(opts Options) *Extractor {
	if opts.MessageSelector == "" {
		opts.MessageSelector = threadMessageSelector
	}
	if opts.NoiseDomains == nil {
		opts.NoiseDomains = DefaultNoiseDomains
	}

	senderCandidate := func(sel string) Strategy {
		return Validated(FirstMatch(SelectorAttr(sel, "email"), SelectorText(sel)), isSenderAddress)
	}

	return &Extractor{
		opts:    opts,
		subject: Each(subjectSelectors, SelectorText),
		sender: FirstMatch(
			Each(senderSelectors, senderCandidate),
			RegexScan(emailPattern, noiseFilter(opts.NoiseDomains)),
		),
		date: FirstMatch(
			Each(dateSelectors, func(sel string) Strategy { return Validated(SelectorText(sel), isDateLike) }),
			RegexScan(dateScanPattern, nil),
		),
		body: Each(bodySelectors, func(sel string) Strategy {
			return func(s *goquery.Selection) (string, bool) {
				found := s.Find(sel).First()
				if found.Length() == 0 {
					return "", false
				}
				text := strings.TrimSpace(found.Text())
				return text, text != ""
			}
		}),
	}
}

// Extract returns the record for the open email. It never fails; fields that
// cannot be resolved carry their default values.
func (e *Extractor) Extract(doc *Document) EmailRecord {
	rec, _ := e.ExtractWithReport(doc)
	return rec
}

// ExtractWithReport is Extract plus the list of missed fields and any
// internal failure.
func (e *Extractor) ExtractWithReport(doc *Document) (rec EmailRecord, report Report) {
	defer func() {
		if p := recover(); p != nil {
			rec = EmailRecord{}.Normalize()
			if doc != nil {
				rec.SourceURL = doc.SourceURL
			}
			report.Err = fmt.Errorf("extraction failed: %v", p)
		}
	}()

	if doc == nil {
		return EmailRecord{}.Normalize(), Report{Err: ErrNilDocument}
	}

	root := doc.Root()
	lookup := func(field string, st Strategy) string {
		v, ok := st(root)
		if !ok {
			report.Misses = append(report.Misses, field)
		}
		return v
	}

	rec = EmailRecord{
		Subject:     lookup("subject", e.subject),
		Sender:      lookup("sender", e.sender),
		Date:        lookup("date", e.date),
		Body:        lookup("body", e.body),
		Attachments: e.attachments(root, doc.SourceURL),
		SourceURL:   doc.SourceURL,
	}
	return rec.Normalize(), report
}

func (e *Extractor) attachments(root *goquery.Selection, base string) []AttachmentRef {
	name := FirstMatch(
		Each(attachmentNameSelectors, func(sel string) Strategy {
			return Validated(FirstMatch(SelectorText(sel), SelectorAttr(sel, "title"), SelectorAttr(sel, "data-attachment-name")), shortName)
		}),
		ownAttr("data-attachment-name"),
		fileNameFromText,
	)

	refs := []AttachmentRef{}
	root.Find(attachmentContainerSelector).Each(func(_ int, c *goquery.Selection) {
		refs = append(refs, attachmentFrom(c, name, base))
	})
	return refs
}

// attachmentFrom reads one attachment container
func attachmentFrom(c *goquery.Selection, name Strategy, base string) AttachmentRef {
	ref := AttachmentRef{}
	ref.Name, _ = name(c)

	size := FirstMatch(
		Each(attachmentSizeSelectors, func(sel string) Strategy { return Validated(SelectorText(sel), isSizeLike) }),
		Validated(ownAttr("data-attachment-size"), isSizeLike),
	)
	ref.Size, _ = size(c)

	if raw, ok := c.Attr(downloadURLAttr); ok {
		mimeType, fileName, link := parseDownloadURL(raw)
		ref.MimeType = mimeType
		ref.DownloadURL = resolveURL(base, link)
		if ref.Name == "" {
			ref.Name = fileName
		}
	}
	if ref.DownloadURL == "" {
		if href, ok := SelectorAttr("a[download]", "href")(c); ok {
			ref.DownloadURL = resolveURL(base, href)
		}
	}
	if t, ok := ownAttr("data-attachment-type")(c); ok {
		ref.MimeType = t
	}
	if ref.MimeType == "" && ref.Name != "" {
		if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(ref.Name))); t != "" {
			ref.MimeType = strings.SplitN(t, ";", 2)[0]
		}
	}
	return ref.Normalize()
}

func ownAttr(attr string) Strategy {
	return func(s *goquery.Selection) (string, bool) {
		v, ok := s.Attr(attr)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

func shortName(v string) bool {
	return len(v) < maxAttachmentNameLen
}

// fileNameFromText pulls something that looks like a filename out of the
// container text, or uses the whole text when it is short.
func fileNameFromText(s *goquery.Selection) (string, bool) {
	text := strings.TrimSpace(s.Text())
	if m := fileNamePattern.FindStringSubmatch(text + " "); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if text != "" && len(text) < shortTextNameLen {
		return text, true
	}
	return "", false
}

// parseDownloadURL splits the "mime:name:url" triple webmail puts on
// attachment chips. A bare URL is accepted as well.
func parseDownloadURL(raw string) (mimeType, name, link string) {
	raw = strings.TrimSpace(raw)
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) == 3 && (strings.HasPrefix(parts[2], "http") || strings.HasPrefix(parts[2], "/")) {
		return parts[0], parts[1], parts[2]
	}
	return "", "", raw
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.IsAbs() || base == "" {
		return u.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(u).String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
