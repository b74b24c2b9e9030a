package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var url string

type balanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance and nonce.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}

func balanceRun(cmd *cobra.Command, args []string) {
	kp, err := signature.LoadKeyPair(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	addr := kp.Address()
	fmt.Println("for account:", addr)

	resp, err := http.Get(fmt.Sprintf("%s/v1/accounts/%s", url, addr))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var bal balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&bal); err != nil {
		log.Fatal(err)
	}

	fmt.Println("balance:", bal.Balance)
	fmt.Println("nonce:", bal.Nonce)
}
