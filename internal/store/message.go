package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-maildir"

	"github.com/maildeck/maildeck/internal/mime"
)

// headerBlockCap bounds how much of a message file the summary pass reads.
const headerBlockCap = 64 * 1024

const (
	placeholderSubject = "(unparseable message)"
	noSubject          = "(no subject)"
)

// Flags is the decoded maildir flag set of one message.
type Flags struct {
	Seen    bool `json:"seen"`
	Replied bool `json:"replied"`
	Flagged bool `json:"flagged"`
	Draft   bool `json:"draft"`
	Trashed bool `json:"trashed"`
}

// String renders the set in maildir's ASCII flag order.
func (f Flags) String() string {
	var b strings.Builder
	if f.Draft {
		b.WriteByte('D')
	}
	if f.Flagged {
		b.WriteByte('F')
	}
	if f.Replied {
		b.WriteByte('R')
	}
	if f.Seen {
		b.WriteByte('S')
	}
	if f.Trashed {
		b.WriteByte('T')
	}
	return b.String()
}

func flagsFromMaildir(in []maildir.Flag) Flags {
	var f Flags
	for _, fl := range in {
		switch fl {
		case maildir.FlagSeen:
			f.Seen = true
		case maildir.FlagReplied:
			f.Replied = true
		case maildir.FlagFlagged:
			f.Flagged = true
		case maildir.FlagDraft:
			f.Draft = true
		case maildir.FlagTrashed:
			f.Trashed = true
		}
	}
	return f
}

// parseKeyAndFlags splits a maildir filename into its key and flag set.
// Entries in new/ are bare keys; cur/ entries carry a ":2," info suffix with
// zero or more flag letters.
func parseKeyAndFlags(name string) (string, Flags) {
	key, info, found := strings.Cut(name, ":")
	if !found {
		return name, Flags{}
	}
	var f Flags
	if rest, ok := strings.CutPrefix(info, "2,"); ok {
		for _, r := range rest {
			switch r {
			case 'S':
				f.Seen = true
			case 'R':
				f.Replied = true
			case 'F':
				f.Flagged = true
			case 'D':
				f.Draft = true
			case 'T':
				f.Trashed = true
			}
		}
	}
	return key, f
}

// timestampFromKey extracts the delivery time from a maildir key. Keys
// conventionally begin with the delivery unix time, terminated by a dot.
func timestampFromKey(key string) (time.Time, bool) {
	digits, _, _ := strings.Cut(key, ".")
	secs, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

// MessageSummary is one list row: identity, headline fields, flags. Building
// one never reads past the message's header block.
type MessageSummary struct {
	ID             string    `json:"id"` // maildir key
	From           string    `json:"from"`
	Subject        string    `json:"subject"`
	Date           time.Time `json:"date"`
	Flags          Flags     `json:"flags"`
	Unread         bool      `json:"unread"`
	HasAttachments bool      `json:"has_attachments"`
	Malformed      bool      `json:"malformed"`
}

// Messages lists one folder, cur/ plus new/, newest first with key order
// breaking ties. tmp/ is never touched. Per-file problems produce placeholder
// rows, never a listing error.
func (ix *Index) Messages(path string) ([]MessageSummary, error) {
	dir, err := ix.abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFolderScan, dir, err)
	}

	var summaries []MessageSummary

	if _, err := os.Stat(filepath.Join(dir, "cur")); err == nil {
		msgs, err := maildir.Dir(dir).Messages()
		if err != nil {
			ix.logger.Warn("list cur", "folder", path, "error", err)
		}
		for _, m := range msgs {
			sum := ix.summarize(m.Key(), m.Filename(), flagsFromMaildir(m.Flags()))
			summaries = append(summaries, sum)
		}
	}

	// new/ is read by hand: the maildir library only surfaces it through
	// Unseen, which moves messages into cur/, and a browser must never
	// write to the store.
	newDir := filepath.Join(dir, "new")
	entries, err := os.ReadDir(newDir)
	if err != nil && !os.IsNotExist(err) {
		ix.logger.Warn("list new", "folder", path, "error", err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		key, flags := parseKeyAndFlags(e.Name())
		summaries = append(summaries, ix.summarize(key, filepath.Join(newDir, e.Name()), flags))
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID < b.ID
	})
	return summaries, nil
}

// summarize builds the row for one message file. It never fails: anything
// unreadable or undecodable becomes a placeholder row with Malformed set, so
// one bad file cannot hide the rest of its folder.
func (ix *Index) summarize(key, filename string, flags Flags) MessageSummary {
	sum := MessageSummary{
		ID:     key,
		Flags:  flags,
		Unread: !flags.Seen,
	}

	var headerDate time.Time
	raw, err := readHeaderBlock(filename)
	if err != nil {
		ix.logger.Debug("read header", "file", filename, "error", err)
		sum.Malformed = true
		sum.Subject = placeholderSubject
	} else {
		h, err := mime.ParseHeader(raw)
		if err != nil || emptyHeader(h) {
			sum.Malformed = true
			sum.Subject = placeholderSubject
		} else {
			headerDate = h.Date
			sum.Subject = h.Subject
			if sum.Subject == "" {
				sum.Subject = noSubject
			}
			sum.From = h.From.Name
			if sum.From == "" {
				sum.From = h.From.Email
			}
			sum.HasAttachments = h.HasAttachments
		}
	}

	// Delivery time: filename epoch, then the Date header, then file mtime.
	if t, ok := timestampFromKey(key); ok {
		sum.Date = t
	} else if !headerDate.IsZero() {
		sum.Date = headerDate
	} else if fi, err := os.Stat(filename); err == nil {
		sum.Date = fi.ModTime()
	}

	return sum
}

// emptyHeader reports whether a decode produced nothing usable. Some byte
// soup decodes without error; a message with no subject, sender, or date is
// treated as malformed rather than rendered blank.
func emptyHeader(h mime.Header) bool {
	return h.Subject == "" && h.From == (mime.Address{}) && h.Date.IsZero()
}

// readHeaderBlock reads a message file up to its header/body separator,
// never more than headerBlockCap bytes.
func readHeaderBlock(filename string) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(f, headerBlockCap))
	if err != nil {
		return nil, err
	}
	if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
		return buf[:i], nil
	}
	if i := bytes.Index(buf, []byte("\n\n")); i >= 0 {
		return buf[:i], nil
	}
	return buf, nil
}
