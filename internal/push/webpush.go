package push

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Keys is the user-agent half of a push subscription: the P-256 key pair
// whose public key is advertised as p256dh, plus the 16-byte auth secret.
type Keys struct {
	priv *ecdh.PrivateKey
	auth []byte
}

// GenerateKeys creates a fresh subscription key pair and auth secret.
func GenerateKeys() (*Keys, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate subscription key: %w", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		return nil, fmt.Errorf("failed to generate auth secret: %w", err)
	}
	return &Keys{priv: priv, auth: auth}, nil
}

// P256dh returns the public key in the urlsafe base64 form the
// subscription endpoint expects.
func (k *Keys) P256dh() string {
	return base64.RawURLEncoding.EncodeToString(k.priv.PublicKey().Bytes())
}

// AuthSecret returns the auth secret in urlsafe base64.
func (k *Keys) AuthSecret() string {
	return base64.RawURLEncoding.EncodeToString(k.auth)
}

// Decrypt opens an RFC 8291 aes128gcm message encrypted to this
// subscription. Push payloads fit one record, so only single-record
// messages are accepted.
func (k *Keys) Decrypt(body []byte) ([]byte, error) {
	if len(body) < 21 {
		return nil, fmt.Errorf("message too short: %d bytes", len(body))
	}
	salt := body[:16]
	rs := binary.BigEndian.Uint32(body[16:20])
	if rs < 18 {
		return nil, fmt.Errorf("invalid record size %d", rs)
	}
	idlen := int(body[20])
	if len(body) < 21+idlen {
		return nil, fmt.Errorf("truncated key id")
	}
	asPubBytes := body[21 : 21+idlen]
	ciphertext := body[21+idlen:]

	asPub, err := ecdh.P256().NewPublicKey(asPubBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid sender public key: %w", err)
	}
	shared, err := k.priv.ECDH(asPub)
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}

	keyInfo := make([]byte, 0, 14+2*65)
	keyInfo = append(keyInfo, []byte("WebPush: info\x00")...)
	keyInfo = append(keyInfo, k.priv.PublicKey().Bytes()...)
	keyInfo = append(keyInfo, asPubBytes...)

	ikm := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, k.auth, keyInfo), ikm); err != nil {
		return nil, err
	}
	cek := make([]byte, 16)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte("Content-Encoding: aes128gcm\x00")), cek); err != nil {
		return nil, err
	}
	nonce := make([]byte, 12)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte("Content-Encoding: nonce\x00")), nonce); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return stripPadding(plaintext)
}

// stripPadding removes the aes128gcm padding delimiter (0x02 for the final
// record) and any trailing zero padding.
func stripPadding(plaintext []byte) ([]byte, error) {
	trimmed := bytes.TrimRight(plaintext, "\x00")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("missing padding delimiter")
	}
	last := trimmed[len(trimmed)-1]
	if last != 0x01 && last != 0x02 {
		return nil, fmt.Errorf("invalid padding delimiter 0x%02x", last)
	}
	return trimmed[:len(trimmed)-1], nil
}
