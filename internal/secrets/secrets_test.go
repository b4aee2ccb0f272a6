package secrets

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	sealed, err := Seal("wg-private-key-material", "correct horse")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !strings.Contains(sealed, ":") {
		t.Fatalf("sealed value missing salt separator: %q", sealed)
	}

	plain, err := Open(sealed, "correct horse")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if plain != "wg-private-key-material" {
		t.Errorf("round trip mismatch: got %q", plain)
	}
}

func TestSeal_UniquePerCall(t *testing.T) {
	a, err := Seal("same value", "pw")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, err := Seal("same value", "pw")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if a == b {
		t.Error("two Seal calls produced identical output")
	}
}

func TestOpen_WrongPassphrase(t *testing.T) {
	sealed, err := Seal("secret", "right")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(sealed, "wrong"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("expected ErrDecrypt, got %v", err)
	}
}

func TestOpen_Tampered(t *testing.T) {
	sealed, err := Seal("secret", "pw")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	saltPart, dataPart, _ := strings.Cut(sealed, ":")
	data, err := base64.StdEncoding.DecodeString(dataPart)
	if err != nil {
		t.Fatalf("decode data: %v", err)
	}
	data[len(data)-1] ^= 0xff
	tampered := saltPart + ":" + base64.StdEncoding.EncodeToString(data)
	if _, err := Open(tampered, "pw"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("expected ErrDecrypt, got %v", err)
	}
}

func TestOpen_Malformed(t *testing.T) {
	cases := []struct {
		name   string
		sealed string
	}{
		{"no separator", "abcdef"},
		{"bad salt base64", "!!!:" + base64.StdEncoding.EncodeToString([]byte("data"))},
		{"short salt", base64.StdEncoding.EncodeToString([]byte("short")) + ":" + base64.StdEncoding.EncodeToString([]byte("data"))},
		{"bad data base64", base64.StdEncoding.EncodeToString(make([]byte, 16)) + ":!!!"},
		{"truncated data", base64.StdEncoding.EncodeToString(make([]byte, 16)) + ":" + base64.StdEncoding.EncodeToString([]byte("x"))},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Open(tc.sealed, "pw"); !errors.Is(err, ErrDecrypt) {
				t.Errorf("expected ErrDecrypt, got %v", err)
			}
		})
	}
}
