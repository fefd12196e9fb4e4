package main

import (
	"os"

	"github.com/sgerhart/roomlink/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
