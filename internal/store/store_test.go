package store

import (
	"os"
	"path/filepath"
	"testing"
)

// mkMaildir creates the cur/new/tmp skeleton for one folder and returns its
// directory.
func mkMaildir(t *testing.T, root string, folder ...string) string {
	t.Helper()
	dir := filepath.Join(append([]string{root}, folder...)...)
	for _, sub := range []string{"cur", "new", "tmp"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatalf("mkdir %s/%s: %v", dir, sub, err)
		}
	}
	return dir
}

// deliver writes one message file into a maildir subdirectory.
func deliver(t *testing.T, dir, sub, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, sub, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write message %s: %v", name, err)
	}
}

// msg builds a minimal well-formed message.
func msg(from, subject, date string) string {
	return "From: " + from + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: " + date + "\r\n" +
		"\r\n" +
		"body\r\n"
}

// scenarioStore builds the store used across tests: INBOX with two cur
// messages (flags S and SR) and one new message, plus Archive/2024 with one
// unread message.
func scenarioStore(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	inbox := mkMaildir(t, root, "INBOX")
	deliver(t, inbox, "cur", "1700000100.a1.host:2,S",
		msg("ana@example.com", "seen one", "Wed, 15 Nov 2023 10:01:40 +0000"))
	deliver(t, inbox, "cur", "1700000200.b2.host:2,SR",
		msg("bob@example.com", "replied one", "Wed, 15 Nov 2023 10:03:20 +0000"))
	deliver(t, inbox, "new", "1700000300.c3.host",
		msg("cyn@example.com", "fresh one", "Wed, 15 Nov 2023 10:05:00 +0000"))

	archive := mkMaildir(t, root, "Archive", "2024")
	deliver(t, archive, "new", "1704067200.d4.host",
		msg("dan@example.com", "january", "Mon, 1 Jan 2024 00:00:00 +0000"))

	return root
}

// rmMessage deletes one message file, path relative to the store root.
func rmMessage(t *testing.T, root, rel string) {
	t.Helper()
	if err := os.Remove(filepath.Join(root, rel)); err != nil {
		t.Fatalf("remove %s: %v", rel, err)
	}
}

func openTestIndex(t *testing.T, root string) *Index {
	t.Helper()
	ix, err := Open(root, Options{})
	if err != nil {
		t.Fatalf("Open(%s) error = %v", root, err)
	}
	return ix
}
