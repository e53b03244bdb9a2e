// Package main is the entry point for the reconciler CLI.
package main

import (
	"os"

	"github.com/shunichi-ikebuchi/invoice-reconciler/cmd/reconciler/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
