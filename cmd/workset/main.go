package main

import (
	"os"

	"github.com/salthouse/workset/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
