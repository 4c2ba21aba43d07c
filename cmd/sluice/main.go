package main

import (
	"os"

	"github.com/okonak/sluice/cmd/sluice/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
