package cmd

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

var (
	nonce    uint64
	gasPrice uint64
	gasLimit uint64
	to       string
	value    string
	data     []byte
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign and submit a transaction",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	sendCmd.Flags().Uint64VarP(&nonce, "nonce", "n", 0, "Nonce for the transaction.")
	sendCmd.Flags().Uint64VarP(&gasPrice, "gas-price", "g", 1, "Gas price for the transaction.")
	sendCmd.Flags().Uint64VarP(&gasLimit, "gas-limit", "l", 21000, "Gas limit for the transaction.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Recipient address.")
	sendCmd.Flags().StringVarP(&value, "value", "v", "0", "Value to send.")
	sendCmd.Flags().BytesHexVarP(&data, "data", "d", nil, "Data to send.")
}

type txRequest struct {
	Nonce     uint64 `json:"nonce"`
	GasPrice  uint64 `json:"gas_price"`
	GasLimit  uint64 `json:"gas_limit"`
	To        string `json:"to"`
	Value     string `json:"value"`
	Data      string `json:"data"`
	From      string `json:"from"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

func sendRun(cmd *cobra.Command, args []string) {
	kp, err := signature.LoadKeyPair(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	toAddr, err := signature.ParseAddress(to)
	if err != nil {
		log.Fatal(err)
	}

	amount, err := uint256.FromDecimal(value)
	if err != nil {
		log.Fatal(err)
	}

	userTx := database.NewUserTx(nonce, gasPrice, gasLimit, toAddr, amount, data)
	signedTx := userTx.Sign(kp)

	req := txRequest{
		Nonce:     signedTx.Nonce,
		GasPrice:  signedTx.GasPrice,
		GasLimit:  signedTx.GasLimit,
		To:        signedTx.To.String(),
		Value:     signedTx.Value.String(),
		Data:      hex.EncodeToString(signedTx.Data),
		From:      signedTx.From.String(),
		PublicKey: "0x" + hex.EncodeToString(signedTx.PublicKey[:]),
		Signature: "0x" + hex.EncodeToString(signedTx.Signature[:]),
	}

	body, err := json.Marshal(req)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx", url), "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	fmt.Println(out)
}
