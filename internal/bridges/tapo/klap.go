package tapo

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // SHA1 is mandated by the KLAP auth hash
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// KLAP sizes.
const (
	seedSize      = 16
	hashSize      = sha256.Size
	keySize       = 16
	ivPrefixSize  = 12
	signatureSize = 28
)

// authHash derives the KLAP credential hash.
func authHash(username, password string) []byte {
	u := sha1.Sum([]byte(username)) //nolint:gosec // Protocol requirement
	p := sha1.Sum([]byte(password)) //nolint:gosec // Protocol requirement
	return sha256Of(u[:], p[:])
}

// serverHash is what the device returns from handshake1.
func serverHash(local, remote, auth []byte) []byte {
	return sha256Of(local, remote, auth)
}

// clientHash is what the client sends in handshake2.
func clientHash(local, remote, auth []byte) []byte {
	return sha256Of(remote, local, auth)
}

func sha256Of(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// session is the symmetric state established by a handshake.
// It is not safe for concurrent use; Client guards it.
type session struct {
	block    cipher.Block
	ivPrefix []byte
	sig      []byte
	seq      int32
}

// newSession derives the session cipher from the handshake seeds.
func newSession(local, remote, auth []byte) (*session, error) {
	key := sha256Of([]byte("lsk"), local, remote, auth)[:keySize]
	iv := sha256Of([]byte("iv"), local, remote, auth)
	sig := sha256Of([]byte("ldk"), local, remote, auth)[:signatureSize]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	return &session{
		block:    block,
		ivPrefix: iv[:ivPrefixSize],
		sig:      sig,
		seq:      int32(binary.BigEndian.Uint32(iv[len(iv)-4:])), //nolint:gosec // Wraps like the device counter
	}, nil
}

// next advances and returns the sequence number for the next request.
func (s *session) next() int32 {
	s.seq++
	return s.seq
}

func (s *session) iv(seq int32) []byte {
	iv := make([]byte, aes.BlockSize)
	copy(iv, s.ivPrefix)
	binary.BigEndian.PutUint32(iv[ivPrefixSize:], uint32(seq)) //nolint:gosec // Bit pattern is what matters
	return iv
}

// seal encrypts plain for sequence number seq and prefixes the signature.
func (s *session) seal(seq int32, plain []byte) []byte {
	padded := pkcs7Pad(plain, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(s.block, s.iv(seq)).CryptBlocks(ct, padded)

	var seqBytes [4]byte
	binary.BigEndian.PutUint32(seqBytes[:], uint32(seq)) //nolint:gosec // Bit pattern is what matters
	signature := sha256Of(s.sig, seqBytes[:], ct)

	return append(signature, ct...)
}

// open strips the signature and decrypts a payload sealed for seq.
func (s *session) open(seq int32, payload []byte) ([]byte, error) {
	if len(payload) < hashSize+aes.BlockSize || (len(payload)-hashSize)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: payload length %d", ErrInvalidResponse, len(payload))
	}
	ct := payload[hashSize:]
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(s.block, s.iv(seq)).CryptBlocks(plain, ct)
	return pkcs7Unpad(plain, aes.BlockSize)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad padding length", ErrInvalidResponse)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidResponse)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrInvalidResponse)
		}
	}
	return b[:len(b)-n], nil
}
