package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

type chainInfoResponse struct {
	TipID           string `json:"tip_id"`
	Height          uint64 `json:"height"`
	TotalDifficulty string `json:"total_difficulty"`
}

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the node's current chain tip",
	Run:   chainRun,
}

func init() {
	rootCmd.AddCommand(chainCmd)
	chainCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}

func chainRun(cmd *cobra.Command, args []string) {
	resp, err := http.Get(fmt.Sprintf("%s/v1/chain", url))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var info chainInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		log.Fatal(err)
	}

	fmt.Println("tip:", info.TipID)
	fmt.Println("height:", info.Height)
	fmt.Println("total difficulty:", info.TotalDifficulty)
}
