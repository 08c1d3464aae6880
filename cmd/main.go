package main

import (
	"os"

	"pyquest-gamification/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
