package stegocrypt

// Key is named key material.
type Key struct {
	// ID is a unique identifier for the key (e.g., "alice-2024-01").
	ID string

	// Material holds the key pairs. It is shared, not copied; KeyMaterial is
	// immutable after creation.
	Material *KeyMaterial
}

// KeyProvider abstracts caller-side key storage. The pipeline never
// retains key material; providers hand it out per operation.
// Implementations must be safe for concurrent use.
type KeyProvider interface {
	// CurrentKey returns the key to use for new encryptions.
	CurrentKey() (Key, error)

	// KeyByID returns the key with the given ID, used for decryption.
	// Returns ErrKeyNotFound if the key ID is not known.
	KeyByID(id string) (Key, error)
}
