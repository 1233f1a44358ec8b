// Command stegocryptd serves the layered steganographic encryption API and
// generates key material for it.
package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
)

func main() {
	// SIGINT wipes locked buffers before exiting.
	memguard.CatchInterrupt()

	code := 0
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code = 1
	}
	memguard.Purge()
	os.Exit(code)
}
