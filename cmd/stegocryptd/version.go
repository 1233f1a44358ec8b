package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/rbaliyan/stegocrypt"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "unknown"
)

func newVersionCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display the version",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout(), verbose)
		},
	}
	cmd.Flags().BoolVar(&verbose, "verbose", false, "If enabled, displays additional build information.")
	return cmd
}

func printVersion(w io.Writer, verbose bool) {
	fmt.Fprintf(w, "stegocryptd version: %s\n", version)
	if verbose {
		fmt.Fprintf(w, "  commit: %s\n", commit)
		fmt.Fprintf(w, "  go: %s\n", runtime.Version())
		fmt.Fprintf(w, "  envelope format: %d\n", stegocrypt.FrameVersion)
	}
}
