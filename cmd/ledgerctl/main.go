package main

import (
	"os"

	"github.com/odyssey-erp/odyssey-ledger/cmd/ledgerctl/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.PostgresEnv).Execute(); err != nil {
		os.Exit(1)
	}
}
