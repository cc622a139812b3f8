package main

import (
	"os"

	"meterbill/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
