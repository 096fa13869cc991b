package domain

// Algorithm represents the AEAD construction used to seal an envelope.
//
// Both algorithms use a 256-bit key, a 12-byte nonce and a 16-byte tag, so an
// envelope produced by either has the same shape on the wire.
type Algorithm string

const (
	// AESGCM is AES-256-GCM. It is the default and the algorithm assumed for
	// envelopes that carry no algorithm field.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305, preferable on hosts without AES-NI.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

const (
	// KeySize is the required length of every encryption key in bytes.
	KeySize = 32

	// NonceSize is the nonce length used by both supported algorithms.
	NonceSize = 12

	// TagSize is the authentication tag length used by both supported algorithms.
	TagSize = 16

	// DefaultKeyVersion is the version assumed when none is configured or recorded.
	DefaultKeyVersion uint = 1
)

// ParseAlgorithm converts a configuration value into an Algorithm.
// An empty string selects AESGCM.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "", AESGCM:
		return AESGCM, nil
	case ChaCha20:
		return ChaCha20, nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
