package main

import (
	"os"

	"productstudio/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
