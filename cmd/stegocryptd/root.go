package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const envPrefix = "STEGOCRYPT_"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stegocryptd",
		Short: "Layered steganographic encryption service",
		Long: `stegocryptd encrypts messages through five layers (AES, key wrapping,
sender watermark, signature, linguistic steganography) and serves the
pipeline as a JSON API.

Every flag can also be set with an environment variable named
STEGOCRYPT_<FLAG>, e.g. STEGOCRYPT_LISTEN. Command line flags win.`,
		SilenceUsage: true,
		// runs after flag parsing so command line values are already marked
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setFlagsFromEnv(envPrefix, cmd.Flags())
		},
	}
	root.AddCommand(newServeCmd(), newKeygenCmd(), newVersionCmd())
	return root
}

// setFlagsFromEnv fills flags not set on the command line from
// <prefix>_<FLAG_NAME> environment variables. It must run after parsing.
// Slice flags take the comma separated variable as their whole value.
func setFlagsFromEnv(prefix string, fs *pflag.FlagSet) error {
	cleanPrefix := strings.TrimSuffix(prefix, "_")
	var errs error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		name := fmt.Sprintf("%s_%s", cleanPrefix, strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_"))
		e, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		var err error
		if sv, isSlice := f.Value.(pflag.SliceValue); isSlice {
			err = sv.Replace(splitList(e))
		} else {
			err = f.Value.Set(e)
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		// marked changed so it overrides the config file
		f.Changed = true
	})
	return errs
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
