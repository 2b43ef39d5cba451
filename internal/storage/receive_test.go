package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newReceiver(t *testing.T, maxBytes int64) (*JWTSigner, *Receiver, string) {
	t.Helper()
	signer, err := NewJWTSigner("upload-secret", "http://localhost:8000", maxBytes)
	if err != nil {
		t.Fatalf("NewJWTSigner: %v", err)
	}
	root := t.TempDir()
	store, err := NewDiskStore(root)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	return signer, NewReceiver(signer, store), root
}

func TestReceiveWritesSignedObject(t *testing.T) {
	signer, rc, root := newReceiver(t, 64)
	up, err := signer.SignUpload(context.Background(), "sds", "u-1/1-sheet.pdf", time.Minute)
	if err != nil {
		t.Fatalf("SignUpload: %v", err)
	}

	obj, err := rc.Receive(context.Background(), "sds", "u-1/1-sheet.pdf", up.Token, strings.NewReader("%PDF-1.7"))
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if obj.Key != "sds/u-1/1-sheet.pdf" || obj.Size != 8 {
		t.Fatalf("unexpected object %+v", obj)
	}
	data, err := os.ReadFile(filepath.Join(root, "sds", "u-1", "1-sheet.pdf"))
	if err != nil || string(data) != "%PDF-1.7" {
		t.Fatalf("stored object = %q, %v", data, err)
	}

	_, err = rc.Receive(context.Background(), "sds", "u-1/1-sheet.pdf", up.Token, strings.NewReader("again"))
	if !errors.Is(err, ErrObjectExists) {
		t.Fatalf("reuse: expected ErrObjectExists, got %v", err)
	}
}

func TestReceiveRejectsMismatchedCapability(t *testing.T) {
	signer, rc, _ := newReceiver(t, 64)
	up, err := signer.SignUpload(context.Background(), "sds", "u-1/1-sheet.pdf", time.Minute)
	if err != nil {
		t.Fatalf("SignUpload: %v", err)
	}
	cases := map[string][3]string{
		"other path":   {"sds", "u-2/1-sheet.pdf", up.Token},
		"other bucket": {"certificates", "u-1/1-sheet.pdf", up.Token},
		"no token":     {"sds", "u-1/1-sheet.pdf", ""},
		"forged":       {"sds", "u-1/1-sheet.pdf", up.Token + "x"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := rc.Receive(context.Background(), tc[0], tc[1], tc[2], strings.NewReader("x"))
			if !errors.Is(err, ErrInvalidCapability) {
				t.Fatalf("expected ErrInvalidCapability, got %v", err)
			}
		})
	}
}

func TestReceiveRejectsExpiredCapability(t *testing.T) {
	signer, rc, _ := newReceiver(t, 64)
	issued := time.Now().Add(-time.Hour)
	signer.now = func() time.Time { return issued }
	up, err := signer.SignUpload(context.Background(), "sds", "u-1/1-sheet.pdf", time.Minute)
	if err != nil {
		t.Fatalf("SignUpload: %v", err)
	}
	signer.now = time.Now
	if _, err := rc.Receive(context.Background(), "sds", "u-1/1-sheet.pdf", up.Token, strings.NewReader("x")); !errors.Is(err, ErrInvalidCapability) {
		t.Fatalf("expected ErrInvalidCapability, got %v", err)
	}
}

func TestReceiveEnforcesSizeLimit(t *testing.T) {
	signer, rc, root := newReceiver(t, 4)
	up, err := signer.SignUpload(context.Background(), "sds", "u-1/1-big.pdf", time.Minute)
	if err != nil {
		t.Fatalf("SignUpload: %v", err)
	}
	if _, err := rc.Receive(context.Background(), "sds", "u-1/1-big.pdf", up.Token, strings.NewReader("12345")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "sds", "u-1", "1-big.pdf")); !os.IsNotExist(err) {
		t.Fatalf("oversized object must not be stored: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "sds", "u-1"))
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestDiskStoreRejectsEscapingPaths(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	cases := [][2]string{
		{"sds", "../outside.pdf"},
		{"sds", "/etc/passwd"},
		{"sds", "a/./b.pdf"},
		{"sds", `a\b.pdf`},
		{"..", "a.pdf"},
		{"a/b", "c.pdf"},
		{"sds", ""},
	}
	for _, tc := range cases {
		if _, err := store.Put(context.Background(), tc[0], tc[1], strings.NewReader("x"), 10); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s/%s: expected ErrInvalidInput, got %v", tc[0], tc[1], err)
		}
	}
}

func TestNewJWTSignerNeedsAbsoluteURL(t *testing.T) {
	if _, err := NewJWTSigner("secret", "", 1); err == nil {
		t.Fatal("expected error for empty public url")
	}
	if _, err := NewJWTSigner("secret", "/relative", 1); err == nil {
		t.Fatal("expected error for relative public url")
	}
}
