package gcpkms

import (
	"context"
	"errors"
	"fmt"
	"testing"

	kmspb "cloud.google.com/go/kms/apiv1/kmspb"

	"github.com/rbaliyan/stegocrypt"
)

const resource = "projects/p/locations/global/keyRings/r/cryptoKeys/k"

type mockClient struct {
	keks     map[string][]byte // ciphertext -> KEK
	failOn   string
	lastName string
}

func (m *mockClient) Decrypt(ctx context.Context, req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error) {
	m.lastName = req.Name
	ct := string(req.Ciphertext)
	if ct == m.failOn {
		return nil, fmt.Errorf("kms: permission denied")
	}
	kek, ok := m.keks[ct]
	if !ok {
		return nil, fmt.Errorf("kms: invalid ciphertext")
	}
	return &kmspb.DecryptResponse{Plaintext: append([]byte(nil), kek...)}, nil
}

func makeKEK(seed byte) []byte {
	kek := make([]byte, 32)
	for i := range kek {
		kek[i] = byte(i) + seed
	}
	return kek
}

func sealedKey(t *testing.T, id string, kek []byte) []byte {
	t.Helper()
	km, err := stegocrypt.GenerateKeyMaterial(stegocrypt.SchemeECC)
	if err != nil {
		t.Fatalf("GenerateKeyMaterial: %v", err)
	}
	sealed, err := stegocrypt.SealKeyMaterial(km, id, kek)
	if err != nil {
		t.Fatalf("SealKeyMaterial: %v", err)
	}
	return sealed
}

func TestNew(t *testing.T) {
	kek := makeKEK(0)
	client := &mockClient{keks: map[string][]byte{"encrypted-kek-1": kek}}

	provider, err := New(context.Background(), client,
		WithSealedKey(sealedKey(t, "key-1", kek), []byte("encrypted-kek-1"), resource),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.lastName != resource {
		t.Errorf("resource name: got %q, want %q", client.lastName, resource)
	}

	key, err := provider.CurrentKey()
	if err != nil {
		t.Fatalf("CurrentKey: %v", err)
	}
	if key.ID != "key-1" {
		t.Errorf("got %q, want %q", key.ID, "key-1")
	}
}

func TestNewWithRotation(t *testing.T) {
	oldKEK, newKEK := makeKEK(0), makeKEK(50)
	client := &mockClient{keks: map[string][]byte{
		"encrypted-new": newKEK,
		"encrypted-old": oldKEK,
	}}

	provider, err := New(context.Background(), client,
		WithSealedKey(sealedKey(t, "key-v2", newKEK), []byte("encrypted-new"), resource),
		WithSealedKey(sealedKey(t, "key-v1", oldKEK), []byte("encrypted-old"), resource),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	current, _ := provider.CurrentKey()
	if current.ID != "key-v2" {
		t.Errorf("current: got %q, want %q", current.ID, "key-v2")
	}
	if _, err := provider.KeyByID("key-v1"); err != nil {
		t.Fatalf("KeyByID: %v", err)
	}
}

func TestNewNoKeys(t *testing.T) {
	if _, err := New(context.Background(), &mockClient{}); err == nil {
		t.Error("expected error for no keys")
	}
}

func TestNewDecryptFailure(t *testing.T) {
	client := &mockClient{failOn: "encrypted-kek-1"}
	_, err := New(context.Background(), client,
		WithSealedKey(sealedKey(t, "key-1", makeKEK(0)), []byte("encrypted-kek-1"), resource),
	)
	if err == nil {
		t.Error("expected error for decrypt failure")
	}
}

func TestNewWrongKEK(t *testing.T) {
	client := &mockClient{keks: map[string][]byte{"encrypted-kek-1": makeKEK(9)}}
	_, err := New(context.Background(), client,
		WithSealedKey(sealedKey(t, "key-1", makeKEK(0)), []byte("encrypted-kek-1"), resource),
	)
	if !errors.Is(err, stegocrypt.ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}
