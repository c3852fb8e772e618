package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-maildir"

	"github.com/maildeck/maildeck/internal/mime"
)

// Content loads and parses one message in full. The id is resolved in cur/
// first, then new/. ErrMessageVanished when it no longer resolves to a file;
// ErrMalformedMessage when the bytes cannot be parsed as a message.
func (ix *Index) Content(path, id string) (*mime.Content, error) {
	raw, err := ix.rawMessage(path, id)
	if err != nil {
		return nil, err
	}
	c, err := mime.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, id, err)
	}
	return c, nil
}

func (ix *Index) rawMessage(path, id string) ([]byte, error) {
	dir, err := ix.abs(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(filepath.Join(dir, "cur")); err == nil {
		if m, err := maildir.Dir(dir).MessageByKey(id); err == nil {
			if raw, err := readMessage(m); err == nil {
				return raw, nil
			}
		}
	}

	newDir := filepath.Join(dir, "new")
	entries, err := os.ReadDir(newDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if key, _ := parseKeyAndFlags(e.Name()); key != id {
				continue
			}
			if raw, err := os.ReadFile(filepath.Join(newDir, e.Name())); err == nil {
				return raw, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %s in %s", ErrMessageVanished, id, path)
}

func readMessage(m *maildir.Message) ([]byte, error) {
	rc, err := m.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
