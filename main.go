package main

import (
	"os"

	"ringmaster/cli"
)

func main() {
	os.Exit(cli.Execute())
}
