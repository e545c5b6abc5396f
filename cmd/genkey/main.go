package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/wallet"
)

func main() {
	home, _ := os.UserHomeDir()
	out := flag.String("out", filepath.Join(home, ".market", "key"), "where to write the key file")
	force := flag.Bool("force", false, "overwrite an existing key file")
	flag.Parse()

	if _, err := os.Stat(*out); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "%s already exists (use -force to replace it)\n", *out)
		os.Exit(1)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	key, err := wallet.GenerateKey()
	if err != nil {
		panic(err)
	}
	if err := wallet.SaveKeyFile(*out, key); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Key file: %s\n", *out)
	fmt.Printf("Address:  %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
}
