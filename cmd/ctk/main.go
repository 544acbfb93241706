package main

import (
	"os"

	"github.com/dshills/ctk/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
