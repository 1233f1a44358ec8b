package stegocrypt_test

import (
	"context"
	"fmt"

	"github.com/rbaliyan/config/codec"
	jsoncodec "github.com/rbaliyan/config/codec/json"

	"github.com/rbaliyan/stegocrypt"
)

func Example() {
	ctx := context.Background()

	km, err := stegocrypt.GenerateKeyMaterial(stegocrypt.SchemeECC)
	if err != nil {
		panic(err)
	}
	p, err := stegocrypt.New()
	if err != nil {
		panic(err)
	}

	env, err := p.Encrypt(ctx, km, stegocrypt.PipelineConfig{SenderIdentifier: "Alice"},
		[]byte("Hello, this is a secret message!"))
	if err != nil {
		panic(err)
	}
	for _, l := range env.Layers {
		fmt.Printf("%s: %s\n", l.Layer, l.Algorithm)
	}

	// Only the stego text and the side-channel fields travel to the recipient.
	res, err := p.Decrypt(ctx, env.SideChannel(), km, stegocrypt.DecryptConfig{ExpectedIdentifier: "Alice"})
	if err != nil {
		panic(err)
	}
	fmt.Println("Sender:", res.ExtractedIdentifier)
	fmt.Println("Signature valid:", res.SignatureValid)
	fmt.Println("Decrypted:", string(res.Plaintext))

	// Output:
	// cipher: AES-256-CBC
	// keywrap: ECDH-ES+A256KW
	// watermark: zero-width-characters
	// sign: ECDSA-SHA256
	// cover: linguistic-synonym-substitution
	// Sender: Alice
	// Signature valid: true
	// Decrypted: Hello, this is a secret message!
}

func ExampleNewCodec() {
	ctx := context.Background()
	km, err := stegocrypt.GenerateKeyMaterial(stegocrypt.SchemeECC)
	if err != nil {
		panic(err)
	}
	provider, err := stegocrypt.NewStaticKeyProvider(km, "key-1")
	if err != nil {
		panic(err)
	}

	layeredJSON, err := stegocrypt.NewCodec(jsoncodec.New(), provider, "config-service")
	if err != nil {
		panic(err)
	}
	codec.Register(layeredJSON)
	fmt.Println("Codec name:", codec.Get("layered:json").Name())

	data, err := layeredJSON.Encode(ctx, "my-secret")
	if err != nil {
		panic(err)
	}

	var result string
	if err := layeredJSON.Decode(ctx, data, &result); err != nil {
		panic(err)
	}
	fmt.Println("Decoded:", result)

	// Output:
	// Codec name: layered:json
	// Decoded: my-secret
}

func ExampleNewStaticKeyProvider_rotation() {
	ctx := context.Background()
	oldKeys, err := stegocrypt.GenerateKeyMaterial(stegocrypt.SchemeRSA)
	if err != nil {
		panic(err)
	}
	oldProvider, err := stegocrypt.NewStaticKeyProvider(oldKeys, "key-v1")
	if err != nil {
		panic(err)
	}
	oldCodec, err := stegocrypt.NewCodec(jsoncodec.New(), oldProvider, "svc")
	if err != nil {
		panic(err)
	}
	encoded, err := oldCodec.Encode(ctx, "secret-data")
	if err != nil {
		panic(err)
	}

	// New key material is current; the old one stays available for decoding.
	newKeys, err := stegocrypt.GenerateKeyMaterial(stegocrypt.SchemeECC)
	if err != nil {
		panic(err)
	}
	newProvider, err := stegocrypt.NewStaticKeyProvider(newKeys, "key-v2",
		stegocrypt.WithOldKey(oldKeys, "key-v1"),
	)
	if err != nil {
		panic(err)
	}
	newCodec, err := stegocrypt.NewCodec(jsoncodec.New(), newProvider, "svc")
	if err != nil {
		panic(err)
	}

	var result string
	if err := newCodec.Decode(ctx, encoded, &result); err != nil {
		panic(err)
	}
	fmt.Println("Decoded with rotated provider:", result)

	// Output:
	// Decoded with rotated provider: secret-data
}
