package cmd

import (
	"fmt"
	"log"

	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the address for the configured key file",
	Run:   accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) {
	kp, err := signature.LoadKeyPair(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(kp.Address())
}
