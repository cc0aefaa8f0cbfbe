package main

import (
	"os"

	"github.com/OhSeongHyeon/mocktalkfront/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
