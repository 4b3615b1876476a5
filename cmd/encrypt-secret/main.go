// Command encrypt-secret encrypts a treasury API secret with a password and
// writes the resulting JSON blob to a file. Point treasury.encrypted_secret_path
// at the output and supply the password via treasury.secret_password (or its
// environment override) to avoid keeping the raw secret in config.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/colonyforge/marketd/internal/crypto"
)

func main() {
	out := flag.String("out", "treasury-secret.json", "output path for the encrypted secret")
	flag.Parse()

	secret := os.Getenv("TREASURY_API_SECRET")
	password := os.Getenv("TREASURY_SECRET_PASSWORD")
	if secret == "" || password == "" {
		fmt.Fprintln(os.Stderr, "set TREASURY_API_SECRET and TREASURY_SECRET_PASSWORD")
		os.Exit(2)
	}

	blob, err := crypto.EncryptSecret(secret, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encrypt: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, blob, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *out, err)
		os.Exit(1)
	}

	fmt.Printf("encrypted secret written to %s\n", *out)
}
