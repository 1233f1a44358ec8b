package stegocrypt

import (
	"fmt"
	"sync"
)

// StaticKeyProvider is a KeyProvider backed by in-memory key material.
// It is safe for concurrent use.
type StaticKeyProvider struct {
	mu      sync.RWMutex
	current Key
	keys    map[string]Key
	err     error // deferred validation error from options
}

// StaticOption configures a StaticKeyProvider.
type StaticOption func(*StaticKeyProvider)

// WithOldKey adds previous key material for decryption during key rotation.
// km must validate and id must not be empty.
func WithOldKey(km *KeyMaterial, id string) StaticOption {
	return func(p *StaticKeyProvider) {
		if p.err != nil {
			return
		}
		if err := checkKey(km, id); err != nil {
			p.err = fmt.Errorf("old key %q: %w", id, err)
			return
		}
		if _, dup := p.keys[id]; dup {
			p.err = fmt.Errorf("%w: duplicate key ID %q", ErrInvalidKeyID, id)
			return
		}
		p.keys[id] = Key{ID: id, Material: km}
	}
}

// NewStaticKeyProvider creates a KeyProvider with the given current key
// material. Old key material can be added with WithOldKey for rotation.
func NewStaticKeyProvider(km *KeyMaterial, id string, opts ...StaticOption) (*StaticKeyProvider, error) {
	if err := checkKey(km, id); err != nil {
		return nil, err
	}

	current := Key{ID: id, Material: km}
	p := &StaticKeyProvider{
		current: current,
		keys:    map[string]Key{id: current},
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.err != nil {
		return nil, p.err
	}

	return p, nil
}

// NewStaticKeyProviderFromKeys uses keys[0] as the current key and the rest
// as old keys.
func NewStaticKeyProviderFromKeys(keys ...Key) (*StaticKeyProvider, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no keys", ErrInvalidKeyID)
	}
	opts := make([]StaticOption, 0, len(keys)-1)
	for _, k := range keys[1:] {
		opts = append(opts, WithOldKey(k.Material, k.ID))
	}
	return NewStaticKeyProvider(keys[0].Material, keys[0].ID, opts...)
}

func checkKey(km *KeyMaterial, id string) error {
	if id == "" || len(id) > 255 {
		return fmt.Errorf("%w: key ID must be 1-255 bytes", ErrInvalidKeyID)
	}
	return km.Validate()
}

// CurrentKey returns the current key for new encryptions.
func (p *StaticKeyProvider) CurrentKey() (Key, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, nil
}

// KeyByID returns the key with the given ID.
func (p *StaticKeyProvider) KeyByID(id string) (Key, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	key, ok := p.keys[id]
	if !ok {
		return Key{}, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return key, nil
}

// Rotate makes km the current key under id. The previous current key stays
// available through KeyByID.
func (p *StaticKeyProvider) Rotate(km *KeyMaterial, id string) error {
	if err := checkKey(km, id); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.keys[id]; dup {
		return fmt.Errorf("%w: duplicate key ID %q", ErrInvalidKeyID, id)
	}
	p.current = Key{ID: id, Material: km}
	p.keys[id] = p.current
	return nil
}

// Compile-time interface check.
var _ KeyProvider = (*StaticKeyProvider)(nil)
