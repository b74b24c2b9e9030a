package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new Ed25519 key pair",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	kp, err := signature.GenerateKeyPair()
	if err != nil {
		log.Fatal(err)
	}

	path := getPrivateKeyPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		log.Fatal(err)
	}

	if err := signature.SaveKeyPair(path, kp); err != nil {
		log.Fatal(err)
	}

	fmt.Println("address:", kp.Address())
	fmt.Println("key file:", path)
}
