package service

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
)

func keyOf(b byte, version uint) cryptoDomain.KeyMaterial {
	return cryptoDomain.KeyMaterial{Version: version, Key: bytes.Repeat([]byte{b}, cryptoDomain.KeySize)}
}

func newTestEnvelopeService(
	t *testing.T,
	alg cryptoDomain.Algorithm,
	current cryptoDomain.KeyMaterial,
	retained ...cryptoDomain.KeyMaterial,
) EnvelopeService {
	t.Helper()
	registry, err := cryptoDomain.NewKeyRegistry(current, retained...)
	require.NoError(t, err)
	return NewEnvelopeService(registry, NewEnvelopeCipher(NewAEADManager()), alg)
}

func TestEnvelopeService_RoundTrip(t *testing.T) {
	jsonPayload, err := json.Marshal(map[string]any{"token": "abc", "scopes": []string{"read", "write"}})
	require.NoError(t, err)

	inputs := map[string]string{
		"simple":      "my-secret-token-12345",
		"whitespace":  "   ",
		"control":     "line1\nline2\tend\r\n",
		"unicode":     "tökén-🔑-令牌",
		"long":        strings.Repeat("x", 10000),
		"json":        string(jsonPayload),
		"single byte": "a",
	}

	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		svc := newTestEnvelopeService(t, alg, keyOf('a', 1))

		for name, input := range inputs {
			t.Run(string(alg)+"/"+name, func(t *testing.T) {
				env, err := svc.Encrypt(input)
				require.NoError(t, err)

				plaintext, err := svc.Decrypt(env)
				require.NoError(t, err)
				assert.Equal(t, input, plaintext)
			})
		}
	}
}

func TestEnvelopeService_RoundTripThroughStorageForm(t *testing.T) {
	svc := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('a', 1))

	env, err := svc.Encrypt("stored-token")
	require.NoError(t, err)

	data, err := json.Marshal(map[string]any{"access_token_encrypted": env.ToMap()})
	require.NoError(t, err)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(data, &stored))

	parsed, err := cryptoDomain.ParseEnvelope(stored["access_token_encrypted"])
	require.NoError(t, err)

	plaintext, err := svc.Decrypt(parsed)
	require.NoError(t, err)
	assert.Equal(t, "stored-token", plaintext)
}

func TestEnvelopeService_Uniqueness(t *testing.T) {
	svc := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('a', 1))

	env1, err := svc.Encrypt("same-token")
	require.NoError(t, err)
	env2, err := svc.Encrypt("same-token")
	require.NoError(t, err)

	assert.NotEqual(t, env1.Nonce, env2.Nonce)
	assert.NotEqual(t, env1.Ciphertext, env2.Ciphertext)
	assert.NotEqual(t, env1.AuthTag, env2.AuthTag)
}

func TestEnvelopeService_TamperDetection(t *testing.T) {
	svc := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('a', 1))

	original, err := svc.Encrypt("refresh-token-value")
	require.NoError(t, err)

	clone := func() *cryptoDomain.Envelope {
		return &cryptoDomain.Envelope{
			Ciphertext: append([]byte(nil), original.Ciphertext...),
			Nonce:      append([]byte(nil), original.Nonce...),
			AuthTag:    append([]byte(nil), original.AuthTag...),
			KeyVersion: original.KeyVersion,
		}
	}

	fields := map[string]func(e *cryptoDomain.Envelope) *[]byte{
		"ciphertext": func(e *cryptoDomain.Envelope) *[]byte { return &e.Ciphertext },
		"nonce":      func(e *cryptoDomain.Envelope) *[]byte { return &e.Nonce },
		"authTag":    func(e *cryptoDomain.Envelope) *[]byte { return &e.AuthTag },
	}

	for name, field := range fields {
		t.Run("flip every byte of "+name, func(t *testing.T) {
			for i := range *field(original) {
				env := clone()
				(*field(env))[i] ^= 0xFF

				plaintext, err := svc.Decrypt(env)
				assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
				assert.Empty(t, plaintext)
			}
		})

		t.Run("truncate "+name, func(t *testing.T) {
			env := clone()
			b := field(env)
			*b = (*b)[:len(*b)-1]

			plaintext, err := svc.Decrypt(env)
			assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
			assert.Empty(t, plaintext)
		})
	}
}

func TestEnvelopeService_Errors(t *testing.T) {
	svc := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('a', 1))

	t.Run("encrypt empty string", func(t *testing.T) {
		_, err := svc.Encrypt("")
		assert.ErrorIs(t, err, cryptoDomain.ErrEmptyInput)
	})

	t.Run("decrypt nil envelope", func(t *testing.T) {
		_, err := svc.Decrypt(nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrEmptyCiphertext)
	})

	t.Run("decrypt envelope without ciphertext", func(t *testing.T) {
		_, err := svc.Decrypt(&cryptoDomain.Envelope{KeyVersion: 1})
		assert.ErrorIs(t, err, cryptoDomain.ErrEmptyCiphertext)
	})
}

func TestEnvelopeService_Versioning(t *testing.T) {
	oldSvc := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('b', 1))
	svc := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('c', 2), keyOf('b', 1))

	assert.Equal(t, uint(2), svc.CurrentKeyVersion())

	fresh, err := svc.Encrypt("token")
	require.NoError(t, err)
	assert.False(t, svc.NeedsReEncryption(fresh))

	old, err := oldSvc.Encrypt("token")
	require.NoError(t, err)
	assert.True(t, svc.NeedsReEncryption(old))

	for _, v := range []uint{1, 3, 7} {
		stamped := *fresh
		stamped.KeyVersion = v
		assert.True(t, svc.NeedsReEncryption(&stamped))
	}

	assert.False(t, svc.NeedsReEncryption(nil))
}

func TestEnvelopeService_NeedsReEncryptionOnAlgorithmChange(t *testing.T) {
	aesSvc := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('a', 1))
	chachaSvc := newTestEnvelopeService(t, cryptoDomain.ChaCha20, keyOf('a', 1))

	env, err := aesSvc.Encrypt("token")
	require.NoError(t, err)
	assert.True(t, chachaSvc.NeedsReEncryption(env))

	migrated, err := chachaSvc.ReEncrypt(env)
	require.NoError(t, err)
	assert.Equal(t, cryptoDomain.ChaCha20, migrated.Algorithm)
	assert.False(t, chachaSvc.NeedsReEncryption(migrated))
}

func TestEnvelopeService_CrossVersionDecrypt(t *testing.T) {
	v1Svc := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('a', 1))
	v5Svc := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('e', 5))
	svc := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('b', 2), keyOf('a', 1))

	v1Env, err := v1Svc.Encrypt("legacy-token")
	require.NoError(t, err)

	plaintext, err := svc.Decrypt(v1Env)
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", plaintext)

	v5Env, err := v5Svc.Encrypt("future-token")
	require.NoError(t, err)

	_, err = svc.Decrypt(v5Env)
	require.ErrorIs(t, err, cryptoDomain.ErrKeyVersionNotFound)
	var notFound *cryptoDomain.KeyVersionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, uint(5), notFound.Version)
}

func TestEnvelopeService_ScenarioSingleKey(t *testing.T) {
	svc := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('a', 1))

	env, err := svc.Encrypt("my-secret-token-12345")
	require.NoError(t, err)
	assert.Equal(t, uint(1), env.KeyVersion)

	plaintext, err := svc.Decrypt(env)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-token-12345", plaintext)
}

func TestEnvelopeService_ScenarioRotation(t *testing.T) {
	before := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('b', 1))
	earlier, err := before.Encrypt("my-secret-token-12345")
	require.NoError(t, err)

	after := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('c', 2), keyOf('b', 1))

	plaintext, err := after.Decrypt(earlier)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-token-12345", plaintext)

	reEncrypted, err := after.ReEncrypt(earlier)
	require.NoError(t, err)
	assert.Equal(t, uint(2), reEncrypted.KeyVersion)
	assert.Equal(t, after.CurrentKeyVersion(), reEncrypted.KeyVersion)
	assert.False(t, after.NeedsReEncryption(reEncrypted))

	plaintext, err = after.Decrypt(reEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-token-12345", plaintext)

	_, err = before.Decrypt(reEncrypted)
	assert.ErrorIs(t, err, cryptoDomain.ErrKeyVersionNotFound)
}

func TestEnvelopeService_ReEncryptPropagatesErrors(t *testing.T) {
	svc := newTestEnvelopeService(t, cryptoDomain.AESGCM, keyOf('a', 1))

	_, err := svc.ReEncrypt(nil)
	assert.ErrorIs(t, err, cryptoDomain.ErrEmptyCiphertext)

	_, err = svc.ReEncrypt(&cryptoDomain.Envelope{Ciphertext: []byte("x"), KeyVersion: 9})
	assert.ErrorIs(t, err, cryptoDomain.ErrKeyVersionNotFound)
}
