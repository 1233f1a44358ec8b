package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rbaliyan/stegocrypt"
)

type keygenFlags struct {
	ecc        bool
	rsaBits    int
	curve      string
	publicOnly bool
	out        string
	kekFile    string
	keyID      string
}

func newKeygenCmd() *cobra.Command {
	f := &keygenFlags{}
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate key material",
		Long: `Generate a key-encryption key pair and a signature key pair.

The bundle is written as JSON with PEM keys. With --kek-file the bundle is
sealed with AES-256-GCM under the hex-encoded 32-byte key in that file and
written in binary form, ready for a KMS-backed key provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if f.out != "" {
				file, err := os.OpenFile(f.out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}
			return f.run(out)
		},
	}

	f.bind(cmd.Flags())
	return cmd
}

func (f *keygenFlags) bind(fs *pflag.FlagSet) {
	fs.BoolVar(&f.ecc, "ecc", false, "Generate ECC keys instead of RSA.")
	fs.IntVar(&f.rsaBits, "rsa-bits", stegocrypt.DefaultRSABits, "RSA modulus size: 1024, 2048, 3072 or 4096.")
	fs.StringVar(&f.curve, "curve", stegocrypt.DefaultCurve, "Elliptic curve: secp256r1, secp384r1 or secp521r1.")
	fs.BoolVar(&f.publicOnly, "public-only", false, "Write only the public keys.")
	fs.StringVarP(&f.out, "out", "o", "", "Output file. Defaults to stdout.")
	fs.StringVar(&f.kekFile, "kek-file", "", "Seal the bundle under the hex key in this file.")
	fs.StringVar(&f.keyID, "key-id", "", "Key ID stored in the sealed header. Required with --kek-file.")
}

func (f *keygenFlags) run(out io.Writer) error {
	var kek []byte
	if f.kekFile != "" {
		if f.publicOnly {
			return fmt.Errorf("--public-only cannot be combined with --kek-file")
		}
		var err error
		if kek, err = readKEK(f.kekFile); err != nil {
			return err
		}
		defer clear(kek)
	}

	km, err := stegocrypt.GenerateKeyMaterial(stegocrypt.SchemeFromECC(f.ecc),
		stegocrypt.WithRSABits(f.rsaBits), stegocrypt.WithCurve(f.curve))
	if err != nil {
		return err
	}

	if kek != nil {
		sealed, err := stegocrypt.SealKeyMaterial(km, f.keyID, kek)
		if err != nil {
			return err
		}
		_, err = out.Write(sealed)
		return err
	}

	if f.publicOnly {
		km = km.Public()
	}
	p, err := km.MarshalPEM()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func readKEK(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer clear(raw)
	kek, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("kek file: %w", err)
	}
	return kek, nil
}
