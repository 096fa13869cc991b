package domain

import (
	"bytes"
	"fmt"
	"log/slog"
	"slices"
)

// KeyMaterial is a 32-byte symmetric key and the version it is stamped with.
type KeyMaterial struct {
	Version uint
	Key     []byte
}

// String never renders the key bytes.
func (k KeyMaterial) String() string {
	return fmt.Sprintf("KeyMaterial{Version: %d}", k.Version)
}

// LogValue keeps key bytes out of structured logs.
func (k KeyMaterial) LogValue() slog.Value {
	return slog.GroupValue(slog.Uint64("version", uint64(k.Version)))
}

// Validate checks the version and the key length.
func (k KeyMaterial) Validate() error {
	if k.Version < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidKeyVersion, k.Version)
	}
	if len(k.Key) != KeySize {
		return fmt.Errorf(
			"%w: key version %d must be %d bytes, got %d",
			ErrInvalidKeyLength,
			k.Version,
			KeySize,
			len(k.Key),
		)
	}
	return nil
}

// KeyRegistry holds the current key and every retained key by version.
//
// The registry is immutable after construction and safe for concurrent reads.
// Close must only be called once nothing else uses the registry.
type KeyRegistry struct {
	current uint
	keys    map[uint]KeyMaterial
}

// NewKeyRegistry builds a registry from explicit key material. Key bytes are
// copied, so callers may zero their own buffers afterwards. A retained key that
// shares the current version is ignored.
func NewKeyRegistry(current KeyMaterial, retained ...KeyMaterial) (*KeyRegistry, error) {
	if len(current.Key) == 0 {
		return nil, ErrMissingEncryptionKey
	}
	if err := current.Validate(); err != nil {
		return nil, err
	}

	r := &KeyRegistry{
		current: current.Version,
		keys:    make(map[uint]KeyMaterial, len(retained)+1),
	}
	r.keys[current.Version] = KeyMaterial{Version: current.Version, Key: bytes.Clone(current.Key)}

	for _, k := range retained {
		if err := k.Validate(); err != nil {
			r.Close()
			return nil, err
		}
		if _, exists := r.keys[k.Version]; exists {
			continue
		}
		r.keys[k.Version] = KeyMaterial{Version: k.Version, Key: bytes.Clone(k.Key)}
	}

	return r, nil
}

// CurrentKey returns the key used for every new encryption.
func (r *KeyRegistry) CurrentKey() (KeyMaterial, error) {
	if r == nil {
		return KeyMaterial{}, ErrMissingEncryptionKey
	}
	key, ok := r.keys[r.current]
	if !ok {
		return KeyMaterial{}, ErrMissingEncryptionKey
	}
	return key, nil
}

// CurrentVersion returns the version of the current key, or 0 for an empty registry.
func (r *KeyRegistry) CurrentVersion() uint {
	if r == nil {
		return 0
	}
	return r.current
}

// KeyForVersion returns the key stamped with version v.
func (r *KeyRegistry) KeyForVersion(v uint) (KeyMaterial, error) {
	if r == nil {
		return KeyMaterial{}, &KeyVersionNotFoundError{Version: v}
	}
	key, ok := r.keys[v]
	if !ok {
		return KeyMaterial{}, &KeyVersionNotFoundError{Version: v}
	}
	return key, nil
}

// Versions lists every version the registry can decrypt, ascending.
func (r *KeyRegistry) Versions() []uint {
	if r == nil {
		return nil
	}
	versions := make([]uint, 0, len(r.keys))
	for v := range r.keys {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions
}

// Close zeroes every key and empties the registry.
func (r *KeyRegistry) Close() {
	if r == nil {
		return
	}
	for v, k := range r.keys {
		Zero(k.Key)
		delete(r.keys, v)
	}
	r.current = 0
}
