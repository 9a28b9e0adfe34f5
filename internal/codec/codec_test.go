package codec

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBase64RoundTrip(t *testing.T) {
	v := []byte("hello\x00world")
	enc := EncodeBase64(v)
	dec, err := DecodeBase64(enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(dec, v) {
		t.Fatalf("round trip mismatch: got %q want %q", dec, v)
	}
}

func TestDecodeBase64Invalid(t *testing.T) {
	_, err := DecodeBase64("not base64!!")
	if !errors.Is(err, ErrBadBase64) {
		t.Fatalf("expected ErrBadBase64, got %v", err)
	}
}

func TestResolveLineEnding(t *testing.T) {
	cases := []struct {
		in        string
		content   string
		continues bool
	}{
		{"plain", "plain", false},
		{`a\`, "a", true},
		{`a\\`, `a\`, false},
		{`a\\\`, `a\`, true},
		{`a\\\\`, `a\\`, false},
	}
	for _, tc := range cases {
		content, continues := ResolveLineEnding([]byte(tc.in))
		if string(content) != tc.content || continues != tc.continues {
			t.Fatalf("ResolveLineEnding(%q) = (%q, %v), want (%q, %v)", tc.in, content, continues, tc.content, tc.continues)
		}
	}
}

func TestReadFileURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	want := []byte("file contents\nwith a newline")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFileURL([]byte("file://" + path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestReadFileURLBadScheme(t *testing.T) {
	_, err := ReadFileURL([]byte("http://example.com/x"))
	if !errors.Is(err, ErrBadURLScheme) {
		t.Fatalf("expected ErrBadURLScheme, got %v", err)
	}
}

func TestCheckHashResult(t *testing.T) {
	if err := CheckHashResult("ssha", []byte("{SSHA}abc123")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckHashResult("ssha", []byte("{SHA}abc123")); err == nil {
		t.Fatalf("expected prefix mismatch error")
	}
	if err := CheckHashResult("bogus", nil); !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
}
