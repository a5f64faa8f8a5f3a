package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"

	"github.com/credvault/credvault/cmd"
)

func main() {
	memguard.CatchInterrupt()

	err := cmd.Execute()
	memguard.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
