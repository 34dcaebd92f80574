package push

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
)

// seal is the application-server side of RFC 8291: encrypt plaintext to
// the subscription keys, producing a single-record aes128gcm message.
func seal(t *testing.T, uaPub *ecdh.PublicKey, auth []byte, plaintext []byte) []byte {
	t.Helper()

	asPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	shared, err := asPriv.ECDH(uaPub)
	require.NoError(t, err)

	salt := make([]byte, 16)
	_, err = rand.Read(salt)
	require.NoError(t, err)

	asPubBytes := asPriv.PublicKey().Bytes()
	keyInfo := append(append([]byte("WebPush: info\x00"), uaPub.Bytes()...), asPubBytes...)

	ikm := make([]byte, 32)
	_, err = io.ReadFull(hkdf.New(sha256.New, shared, auth, keyInfo), ikm)
	require.NoError(t, err)
	cek := make([]byte, 16)
	_, err = io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte("Content-Encoding: aes128gcm\x00")), cek)
	require.NoError(t, err)
	nonce := make([]byte, 12)
	_, err = io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte("Content-Encoding: nonce\x00")), nonce)
	require.NoError(t, err)

	block, err := aes.NewCipher(cek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	padded := append(append([]byte{}, plaintext...), 0x02)
	ciphertext := gcm.Seal(nil, nonce, padded, nil)

	msg := make([]byte, 0, 21+len(asPubBytes)+len(ciphertext))
	msg = append(msg, salt...)
	msg = binary.BigEndian.AppendUint32(msg, 4096)
	msg = append(msg, byte(len(asPubBytes)))
	msg = append(msg, asPubBytes...)
	msg = append(msg, ciphertext...)
	return msg
}

func TestKeys_PublicFormsAreURLSafe(t *testing.T) {
	keys, err := GenerateKeys()
	require.NoError(t, err)

	pub, err := base64.RawURLEncoding.DecodeString(keys.P256dh())
	require.NoError(t, err)
	assert.Len(t, pub, 65, "uncompressed P-256 point")
	assert.EqualValues(t, 4, pub[0])

	auth, err := base64.RawURLEncoding.DecodeString(keys.AuthSecret())
	require.NoError(t, err)
	assert.Len(t, auth, 16)
}

func TestDecrypt_RoundTrip(t *testing.T) {
	keys, err := GenerateKeys()
	require.NoError(t, err)

	msg := seal(t, keys.priv.PublicKey(), keys.auth, []byte(`{"title":"hi"}`))

	plaintext, err := keys.Decrypt(msg)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"hi"}`, string(plaintext))
}

func TestDecrypt_WrongKeysFails(t *testing.T) {
	keys, err := GenerateKeys()
	require.NoError(t, err)
	other, err := GenerateKeys()
	require.NoError(t, err)

	msg := seal(t, keys.priv.PublicKey(), keys.auth, []byte("secret"))

	_, err = other.Decrypt(msg)
	assert.Error(t, err)
}

func TestDecrypt_Truncated(t *testing.T) {
	keys, err := GenerateKeys()
	require.NoError(t, err)

	_, err = keys.Decrypt([]byte("short"))
	assert.Error(t, err)
}
