package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewAESEncryptor(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "valid 32-byte key", key: base64.StdEncoding.EncodeToString(make([]byte, 32)), wantErr: false},
		{name: "empty key", key: "", wantErr: true},
		{name: "not base64", key: "!!!not-base64!!!", wantErr: true},
		{name: "wrong length", key: base64.StdEncoding.EncodeToString(make([]byte, 16)), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAESEncryptor(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewAESEncryptor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor: %v", err)
	}

	plaintexts := []string{
		"access-token-abcdef",
		"",
		strings.Repeat("x", 4096),
		"unicode: トークン",
	}
	for _, pt := range plaintexts {
		ct, err := EncryptString(enc, pt)
		if err != nil {
			t.Fatalf("EncryptString(%q): %v", pt, err)
		}
		if pt != "" && ct == pt {
			t.Errorf("ciphertext equals plaintext for %q", pt)
		}
		got, err := DecryptString(enc, ct)
		if err != nil {
			t.Fatalf("DecryptString: %v", err)
		}
		if got != pt {
			t.Errorf("round trip = %q, want %q", got, pt)
		}
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor: %v", err)
	}
	ct, err := enc.Encrypt([]byte("refresh-token"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ct[len(ct)-1] ^= 0xff
	if _, err := enc.Decrypt(ct); err == nil {
		t.Error("Decrypt() expected error for tampered ciphertext")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	enc1, _ := NewAESEncryptor(testKey(t))
	enc2, _ := NewAESEncryptor(testKey(t))
	ct, err := enc1.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := enc2.Decrypt(ct); err == nil {
		t.Error("Decrypt() expected error under different key")
	}
}

func TestDecryptShortCiphertext(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	if _, err := enc.Decrypt([]byte{0x01, 0x02}); err == nil {
		t.Error("Decrypt() expected error for truncated ciphertext")
	}
}

func TestNonceUniqueness(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	a, _ := enc.Encrypt([]byte("same plaintext"))
	b, _ := enc.Encrypt([]byte("same plaintext"))
	if string(a) == string(b) {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}
