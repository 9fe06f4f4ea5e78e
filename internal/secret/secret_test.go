package secret

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestSealOpen(t *testing.T) {
	box, err := NewBox(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	sealed, err := box.Seal("xoxb-123")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == "xoxb-123" {
		t.Fatalf("value was not sealed")
	}
	plain, err := box.Open(sealed)
	if err != nil || plain != "xoxb-123" {
		t.Fatalf("Open = %q, %v", plain, err)
	}

	other, _ := NewBox(bytes.Repeat([]byte{8}, 32))
	if _, err := other.Open(sealed); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt with wrong key, got %v", err)
	}
	if _, err := box.Open("not base64!"); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt for garbage, got %v", err)
	}
}

func TestEmptyValues(t *testing.T) {
	box, _ := NewBox(make([]byte, 32))
	if s, err := box.Seal(""); s != "" || err != nil {
		t.Fatalf("Seal(\"\") = %q, %v", s, err)
	}
	if s, err := box.Open(""); s != "" || err != nil {
		t.Fatalf("Open(\"\") = %q, %v", s, err)
	}
}

func TestParseKey(t *testing.T) {
	good := base64.StdEncoding.EncodeToString(make([]byte, 32))
	if _, err := ParseKey(good); err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	short := base64.StdEncoding.EncodeToString(make([]byte, 16))
	if _, err := ParseKey(short); err == nil {
		t.Fatalf("expected error for short key")
	}
	if _, err := NewBox(make([]byte, 16)); err == nil {
		t.Fatalf("expected error for short key")
	}
}
