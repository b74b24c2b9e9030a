// Command wallet is the Ed25519 key-management and transaction-submission
// client for a powchain node, the counterpart to the node daemon in
// cmd/node.
package main

import (
	"github.com/coreledger/powchain/app/wallet/cli/cmd"
)

func main() {
	cmd.Execute()
}
