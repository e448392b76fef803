// Command ledgerctl operates the ledger: seeding, sync retries, balance
// maintenance and the background maintenance loop.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
