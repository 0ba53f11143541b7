package tapo

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // Protocol test vectors
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"
)

func TestAuthHash(t *testing.T) {
	u := sha1.Sum([]byte("user@example.com")) //nolint:gosec // Protocol test vectors
	p := sha1.Sum([]byte("hunter2"))          //nolint:gosec // Protocol test vectors
	want := sha256.Sum256(append(u[:], p[:]...))

	if got := authHash("user@example.com", "hunter2"); !bytes.Equal(got, want[:]) {
		t.Errorf("authHash() = %x, want %x", got, want)
	}
}

func TestHandshakeHashesDiffer(t *testing.T) {
	local := bytes.Repeat([]byte{1}, seedSize)
	remote := bytes.Repeat([]byte{2}, seedSize)
	auth := authHash("u", "p")

	if bytes.Equal(serverHash(local, remote, auth), clientHash(local, remote, auth)) {
		t.Error("server and client hashes must differ (seed order)")
	}
}

func TestNewSession_Derivation(t *testing.T) {
	local := bytes.Repeat([]byte{0xAA}, seedSize)
	remote := bytes.Repeat([]byte{0x55}, seedSize)
	auth := authHash("u", "p")

	s, err := newSession(local, remote, auth)
	if err != nil {
		t.Fatalf("newSession() error = %v", err)
	}

	iv := sha256.Sum256(bytes.Join([][]byte{[]byte("iv"), local, remote, auth}, nil))
	if !bytes.Equal(s.ivPrefix, iv[:12]) {
		t.Errorf("ivPrefix = %x, want %x", s.ivPrefix, iv[:12])
	}
	if want := int32(binary.BigEndian.Uint32(iv[28:])); s.seq != want { //nolint:gosec // Test
		t.Errorf("seq = %d, want %d", s.seq, want)
	}
	sig := sha256.Sum256(bytes.Join([][]byte{[]byte("ldk"), local, remote, auth}, nil))
	if !bytes.Equal(s.sig, sig[:28]) {
		t.Errorf("sig = %x, want %x", s.sig, sig[:28])
	}

	start := s.seq
	if got := s.next(); got != start+1 {
		t.Errorf("next() = %d, want %d", got, start+1)
	}
}

func TestSession_SealOpen(t *testing.T) {
	s, err := newSession(bytes.Repeat([]byte{1}, seedSize), bytes.Repeat([]byte{2}, seedSize), authHash("u", "p"))
	if err != nil {
		t.Fatalf("newSession() error = %v", err)
	}

	tests := []struct {
		name  string
		plain []byte
	}{
		{"empty", []byte{}},
		{"short", []byte(`{"method":"get_device_info"}`)},
		{"block aligned", bytes.Repeat([]byte("x"), 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := s.next()
			sealed := s.seal(seq, tt.plain)

			if len(sealed) <= hashSize || (len(sealed)-hashSize)%16 != 0 {
				t.Fatalf("sealed length %d is not signature plus whole blocks", len(sealed))
			}

			got, err := s.open(seq, sealed)
			if err != nil {
				t.Fatalf("open() error = %v", err)
			}
			if !bytes.Equal(got, tt.plain) {
				t.Errorf("open() = %q, want %q", got, tt.plain)
			}

			// A different sequence number uses a different IV.
			if other, err := s.open(seq+1, sealed); err == nil && bytes.Equal(other, tt.plain) && len(tt.plain) > 0 {
				t.Error("payload decrypted under the wrong sequence number")
			}
		})
	}
}

func TestSession_OpenRejectsShortPayload(t *testing.T) {
	s, _ := newSession(make([]byte, seedSize), make([]byte, seedSize), authHash("u", "p"))

	if _, err := s.open(1, make([]byte, hashSize+3)); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("open(short) error = %v, want ErrInvalidResponse", err)
	}
}

func TestPKCS7(t *testing.T) {
	padded := pkcs7Pad([]byte("abc"), 16)
	if len(padded) != 16 || padded[15] != 13 {
		t.Errorf("pkcs7Pad() = %v", padded)
	}
	out, err := pkcs7Unpad(padded, 16)
	if err != nil || string(out) != "abc" {
		t.Errorf("pkcs7Unpad() = %q, %v", out, err)
	}

	full := pkcs7Pad(bytes.Repeat([]byte{1}, 16), 16)
	if len(full) != 32 {
		t.Errorf("aligned input padded to %d bytes, want 32", len(full))
	}

	bad := append(bytes.Repeat([]byte{0}, 15), 0x11)
	if _, err := pkcs7Unpad(bad, 16); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("pkcs7Unpad(bad) error = %v, want ErrInvalidResponse", err)
	}
}
