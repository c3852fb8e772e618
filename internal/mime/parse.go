// Package mime parses raw message bytes into displayable content using enmime.
package mime

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/mail"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/maildeck/maildeck/internal/textutil"
)

// Content is the fully parsed form of exactly one message. The navigation
// layer materializes at most one Content at a time and evicts it as soon as
// the selection moves away.
type Content struct {
	Subject     string       `json:"subject"`
	Date        time.Time    `json:"date"`
	From        []Address    `json:"from,omitempty"`
	To          []Address    `json:"to,omitempty"`
	Cc          []Address    `json:"cc,omitempty"`
	BodyText    string       `json:"body_text,omitempty"`
	BodyHTML    string       `json:"-"` // views render text; raw HTML stays local
	Attachments []Attachment `json:"attachments,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"` // non-fatal parser complaints
}

// Address is a display name plus address pair.
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Attachment describes one attached part. Content bytes are not retained;
// the browser only ever shows metadata.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
}

// Header holds the summary-relevant fields decoded from a header block,
// without the body ever being read.
type Header struct {
	Subject        string
	From           Address
	Date           time.Time
	HasAttachments bool
}

// Parse parses a complete raw message.
func Parse(raw []byte) (*Content, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read envelope: %w", err)
	}

	// enmime synthesizes Envelope.Text from the HTML when a message has no
	// text/plain part; BodyText must stay empty then so BodyDisplay's
	// StripHTML path is the one that renders.
	var bodyText string
	if hasPlainPart(env.Root) {
		bodyText = textutil.EnsureUTF8(env.Text)
	}

	c := &Content{
		Subject:  textutil.EnsureUTF8(env.GetHeader("Subject")),
		BodyText: bodyText,
		BodyHTML: env.HTML,
		From:     addressList(env, "From"),
		To:       addressList(env, "To"),
		Cc:       addressList(env, "Cc"),
	}

	if d := env.GetHeader("Date"); d != "" {
		if t, err := parseDate(d); err == nil {
			c.Date = t
		}
	}

	c.Attachments = append(c.Attachments, attachments(env.Attachments)...)
	c.Attachments = append(c.Attachments, attachments(env.Inlines)...)

	for _, e := range env.Errors {
		c.Warnings = append(c.Warnings, e.Error())
	}

	return c, nil
}

// ParseHeader decodes only the header block of a raw message. The input
// should be the bytes up to (or a bounded prefix including) the blank line
// separating headers from the body.
func ParseHeader(raw []byte) (Header, error) {
	hdr, err := enmime.DecodeHeaders(raw)
	if err != nil {
		return Header{}, fmt.Errorf("decode headers: %w", err)
	}

	h := Header{
		Subject: textutil.EnsureUTF8(hdr.Get("Subject")),
	}

	if from := hdr.Get("From"); from != "" {
		h.From = parseOneAddress(from)
	}
	if d := hdr.Get("Date"); d != "" {
		if t, err := parseDate(d); err == nil {
			h.Date = t
		}
	}

	// DecodeHeaders only surfaces the addressing fields, never Content-Type,
	// so that one is read from the raw block. Header-only heuristic: mixed
	// multiparts are the ones that carry files.
	ct := strings.ToLower(rawHeaderValue(raw, "Content-Type"))
	h.HasAttachments = strings.Contains(ct, "multipart/mixed")

	return h, nil
}

// rawHeaderValue reads one field straight out of a header block, undecoded.
// Folded continuation lines are joined.
func rawHeaderValue(raw []byte, name string) string {
	// The trailing blank line terminates the block cleanly for textproto.
	r := io.MultiReader(bytes.NewReader(raw), strings.NewReader("\r\n\r\n"))
	mh, err := textproto.NewReader(bufio.NewReader(r)).ReadMIMEHeader()
	if len(mh) == 0 && err != nil {
		return ""
	}
	return mh.Get(name)
}

// hasPlainPart reports whether the part tree carries a real text/plain body
// (not an attached text file).
func hasPlainPart(p *enmime.Part) bool {
	for ; p != nil; p = p.NextSibling {
		ct := strings.ToLower(p.ContentType)
		if i := strings.Index(ct, ";"); i >= 0 {
			ct = strings.TrimSpace(ct[:i])
		}
		if ct == "text/plain" && p.FileName == "" {
			return true
		}
		if hasPlainPart(p.FirstChild) {
			return true
		}
	}
	return false
}

// MarshalJSON serializes the content with body_text already resolved to the
// displayable body, so network views never have to strip HTML themselves.
func (c *Content) MarshalJSON() ([]byte, error) {
	type wire Content
	w := wire(*c)
	w.BodyText = c.BodyDisplay()
	return json.Marshal(w)
}

// BodyDisplay returns the best available body text for rendering.
// Prefers the plain part, falls back to stripped HTML.
func (c *Content) BodyDisplay() string {
	if c.BodyText != "" {
		return c.BodyText
	}
	if c.BodyHTML != "" {
		return StripHTML(c.BodyHTML)
	}
	return ""
}

// String renders an address as "Name <addr>", degrading to whichever part exists.
func (a Address) String() string {
	switch {
	case a.Name != "" && a.Email != "":
		return fmt.Sprintf("%s <%s>", a.Name, a.Email)
	case a.Name != "":
		return a.Name
	default:
		return a.Email
	}
}

func addressList(env *enmime.Envelope, key string) []Address {
	list, err := env.AddressList(key)
	if err != nil || len(list) == 0 {
		return nil
	}
	out := make([]Address, 0, len(list))
	for _, a := range list {
		if a.Address == "" && a.Name == "" {
			continue
		}
		out = append(out, Address{
			Name:  textutil.EnsureUTF8(a.Name),
			Email: strings.ToLower(a.Address),
		})
	}
	return out
}

// parseOneAddress extracts the first address from a decoded header value,
// keeping the raw value as a display name when it will not parse.
func parseOneAddress(value string) Address {
	value = textutil.EnsureUTF8(value)
	list, err := mail.ParseAddressList(value)
	if err != nil || len(list) == 0 {
		return Address{Name: strings.TrimSpace(value)}
	}
	return Address{Name: list[0].Name, Email: strings.ToLower(list[0].Address)}
}

// isBodyPart reports whether a part is body content rather than an
// attachment: text/plain or text/html, no filename, not explicitly
// disposed as attachment.
func isBodyPart(part *enmime.Part) bool {
	contentType := strings.ToLower(part.ContentType)
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if contentType != "text/plain" && contentType != "text/html" {
		return false
	}
	if part.FileName != "" {
		return false
	}
	disposition := strings.ToLower(part.Disposition)
	if idx := strings.Index(disposition, ";"); idx >= 0 {
		disposition = strings.TrimSpace(disposition[:idx])
	}
	return disposition != "attachment"
}

func attachments(parts []*enmime.Part) []Attachment {
	var out []Attachment
	for _, part := range parts {
		if isBodyPart(part) {
			continue
		}
		out = append(out, Attachment{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			Size:        int64(len(part.Content)),
		})
	}
	return out
}

// dateFormats lists Date header layouts seen in real mail, most common first.
var dateFormats = []string{
	time.RFC1123Z,                           // "Mon, 02 Jan 2006 15:04:05 -0700"
	time.RFC1123,                            // "Mon, 02 Jan 2006 15:04:05 MST"
	"Mon, 2 Jan 2006 15:04:05 -0700",        // single-digit day
	"Mon, 2 Jan 2006 15:04:05 MST",          // single-digit day, named TZ
	"2 Jan 2006 15:04:05 -0700",             // no weekday
	"2 Jan 2006 15:04:05 MST",               // no weekday, named TZ
	"02 Jan 2006 15:04:05 -0700",            // no weekday, zero-padded
	"02 Jan 2006 15:04:05 MST",              // no weekday, zero-padded, named TZ
	time.RFC822Z,                            // "02 Jan 06 15:04 -0700"
	time.RFC822,                             // "02 Jan 06 15:04 MST"
	"Mon, 02 Jan 2006 15:04:05 -0700 (MST)", // parenthesized TZ
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",  // single-digit day, paren TZ
	time.RFC3339,
}

// parseDate attempts the known layouts, normalizing whitespace and a trailing
// parenthesized timezone name first. Returns UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")

	base := s
	if idx := strings.LastIndex(s, "("); idx > 0 {
		base = strings.TrimSpace(s[:idx])
	}

	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, base); err == nil {
			return t.UTC(), nil
		}
	}
	if base != s {
		for _, layout := range dateFormats {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format %q", s)
}

var (
	blockTagRe  = regexp.MustCompile(`(?i)<(/?)(p|div|br|hr|h[1-6]|li|tr|td|th|blockquote|pre|table|ul|ol|dl|dt|dd)[^>]*>`)
	scriptTagRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTagRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	headTagRe   = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	htmlTagRe   = regexp.MustCompile(`<[^>]*>`)
)

// StripHTML removes markup, decodes entities, and normalizes whitespace so an
// HTML-only body reads as plain text. Block elements become line breaks.
// Preformatted content loses its exact spacing; acceptable for previewing.
func StripHTML(rawHTML string) string {
	text := scriptTagRe.ReplaceAllString(rawHTML, "")
	text = styleTagRe.ReplaceAllString(text, "")
	text = headTagRe.ReplaceAllString(text, "")

	text = blockTagRe.ReplaceAllString(text, "\n")
	text = htmlTagRe.ReplaceAllString(text, "")

	text = html.UnescapeString(text)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, " ", " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")

	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(text)
}
