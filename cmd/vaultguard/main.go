package main

import (
	"os"

	"github.com/vaultguard/vaultguard/internal/cli"
)

func main() {
	cli.InitCLI()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
