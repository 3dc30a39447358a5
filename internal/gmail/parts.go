package gmail

import (
	"encoding/base64"
	"mime"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"
	"google.golang.org/api/gmail/v1"
)

func init() {
	// Charsets common in older mail that go-message does not register
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

var base64URLAlphabet = strings.NewReplacer("-", "+", "_", "/")

// DecodeBase64URL decodes the URL-safe alphabet the API uses, with or
// without padding
func DecodeBase64URL(s string) ([]byte, error) {
	s = base64URLAlphabet.Replace(strings.TrimSpace(s))
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return base64.StdEncoding.DecodeString(s)
}

// Attachments walks the part tree and returns every part with a file name
// and a remote body
func Attachments(msg *gmail.Message) []PartAttachment {
	if msg == nil || msg.Payload == nil {
		return nil
	}
	var out []PartAttachment
	var walk func(p *gmail.MessagePart)
	walk = func(p *gmail.MessagePart) {
		if p.Filename != "" && p.Body != nil && p.Body.AttachmentId != "" {
			out = append(out, PartAttachment{
				Filename:     decodeWords(p.Filename),
				MimeType:     p.MimeType,
				AttachmentID: p.Body.AttachmentId,
				Size:         p.Body.Size,
			})
		}
		for _, child := range p.Parts {
			if child != nil {
				walk(child)
			}
		}
	}
	walk(msg.Payload)
	return out
}

// MatchAttachment picks the first part not yet in taken whose file name
// equals name, ignoring case. A name the page cut short ("long-na...") also
// matches a part whose file name starts with the visible prefix.
func MatchAttachment(parts []PartAttachment, name string, taken map[string]bool) (PartAttachment, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return PartAttachment{}, false
	}
	for _, p := range parts {
		if !taken[p.AttachmentID] && strings.ToLower(p.Filename) == want {
			return p, true
		}
	}

	prefix := strings.TrimRight(strings.TrimSuffix(want, "…"), ".")
	if prefix == want || prefix == "" {
		return PartAttachment{}, false
	}
	for _, p := range parts {
		if !taken[p.AttachmentID] && strings.HasPrefix(strings.ToLower(p.Filename), prefix) {
			return p, true
		}
	}
	return PartAttachment{}, false
}

// Sender returns the address of the first From mailbox
func Sender(msg *gmail.Message) string {
	h := header(msg)
	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 {
		return addrs[0].Address
	}
	return h.Get("From")
}

// Subject returns the decoded Subject header
func Subject(msg *gmail.Message) string {
	h := header(msg)
	if s, err := h.Subject(); err == nil {
		return s
	}
	return h.Get("Subject")
}

func header(msg *gmail.Message) mail.Header {
	var h mail.Header
	if msg == nil || msg.Payload == nil {
		return h
	}
	for _, kv := range msg.Payload.Headers {
		h.Add(kv.Name, kv.Value)
	}
	return h
}

func decodeWords(s string) string {
	dec := mime.WordDecoder{CharsetReader: charset.Reader}
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}
