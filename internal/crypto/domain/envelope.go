package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/allisson/tokenvault/internal/errors"
)

// Envelope is a sealed secret as stored inside a credential's api_config.
//
// The JSON form is the storage contract shared with every other reader of the
// credential table:
//
//	{"encrypted": "<b64>", "iv": "<b64>", "authTag": "<b64>", "keyVersion": 1}
//
// The optional "algorithm" member is only written for non-default algorithms.
// Envelopes are values: rotation and re-encryption always produce a new one.
type Envelope struct {
	Ciphertext []byte    `json:"encrypted"`
	Nonce      []byte    `json:"iv"`
	AuthTag    []byte    `json:"authTag"`
	KeyVersion uint      `json:"keyVersion"`
	Algorithm  Algorithm `json:"algorithm,omitempty"`
}

type envelopeJSON struct {
	Ciphertext string `json:"encrypted"`
	Nonce      string `json:"iv"`
	AuthTag    string `json:"authTag"`
	KeyVersion *uint  `json:"keyVersion"`
	Algorithm  string `json:"algorithm"`
}

// UnmarshalJSON decodes the storage form. A missing keyVersion is read as
// version 1, which is what envelopes written before versioning imply.
//
// Structural problems (not an object, wrong member types, bad keyVersion or
// algorithm) are ErrMalformedEnvelope. Damaged base64 in encrypted, iv or
// authTag is ErrDecryptionFailed, the same error an altered byte produces.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw envelopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	version := DefaultKeyVersion
	if raw.KeyVersion != nil {
		if *raw.KeyVersion == 0 {
			return fmt.Errorf("%w: keyVersion must be positive", ErrMalformedEnvelope)
		}
		version = *raw.KeyVersion
	}

	alg, err := ParseAlgorithm(raw.Algorithm)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if alg == AESGCM {
		alg = ""
	}

	ciphertext, err := decodeSealedField(raw.Ciphertext)
	if err != nil {
		return err
	}
	nonce, err := decodeSealedField(raw.Nonce)
	if err != nil {
		return err
	}
	authTag, err := decodeSealedField(raw.AuthTag)
	if err != nil {
		return err
	}

	*e = Envelope{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		AuthTag:    authTag,
		KeyVersion: version,
		Algorithm:  alg,
	}
	return nil
}

func decodeSealedField(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return decoded, nil
}

// EffectiveAlgorithm returns the algorithm the envelope was sealed with.
func (e *Envelope) EffectiveAlgorithm() Algorithm {
	if e.Algorithm == "" {
		return AESGCM
	}
	return e.Algorithm
}

// ToMap renders the envelope in the generic form kept inside api_config.
func (e *Envelope) ToMap() map[string]any {
	m := map[string]any{
		"encrypted":  base64.StdEncoding.EncodeToString(e.Ciphertext),
		"iv":         base64.StdEncoding.EncodeToString(e.Nonce),
		"authTag":    base64.StdEncoding.EncodeToString(e.AuthTag),
		"keyVersion": e.KeyVersion,
	}
	if alg := e.EffectiveAlgorithm(); alg != AESGCM {
		m["algorithm"] = string(alg)
	}
	return m
}

// ParseEnvelope reads an envelope out of an untyped api_config value. It
// accepts the decoded JSON object form, a JSON string, raw JSON bytes, or an
// Envelope. A nil value or an envelope without ciphertext yields
// ErrEmptyCiphertext, damaged base64 in a sealed field yields
// ErrDecryptionFailed, and anything else that does not decode yields
// ErrMalformedEnvelope.
func ParseEnvelope(value any) (*Envelope, error) {
	var data []byte

	switch v := value.(type) {
	case nil:
		return nil, ErrEmptyCiphertext
	case *Envelope:
		if v == nil {
			return nil, ErrEmptyCiphertext
		}
		cp := *v
		return validateParsed(&cp)
	case Envelope:
		return validateParsed(&v)
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case map[string]any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		data = encoded
	default:
		return nil, fmt.Errorf("%w: unexpected type %T", ErrMalformedEnvelope, value)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if errors.Is(err, ErrMalformedEnvelope) || errors.Is(err, ErrDecryptionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return validateParsed(&env)
}

func validateParsed(env *Envelope) (*Envelope, error) {
	if len(env.Ciphertext) == 0 {
		return nil, ErrEmptyCiphertext
	}
	return env, nil
}
