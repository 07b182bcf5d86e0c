package cmd

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/gorilla/securecookie"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	var blockSize int

	c := &cobra.Command{
		Use:   "keys",
		Short: "Generate COOKIE_HASH_KEY and COOKIE_BLOCK_KEY values (base64) for the session cookie",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch blockSize {
			case 16, 24, 32:
			default:
				return fmt.Errorf("--block-size must be 16, 24 or 32, got %d", blockSize)
			}
			hash := securecookie.GenerateRandomKey(32)
			block := securecookie.GenerateRandomKey(blockSize)
			if hash == nil || block == nil {
				return errors.New("generate keys: random source failed")
			}
			fmt.Fprintf(os.Stdout, "export COOKIE_HASH_KEY=%s\n", base64.StdEncoding.EncodeToString(hash))
			fmt.Fprintf(os.Stdout, "export COOKIE_BLOCK_KEY=%s\n", base64.StdEncoding.EncodeToString(block))
			return nil
		},
	}

	c.Flags().IntVar(&blockSize, "block-size", 32, "AES key size in bytes for COOKIE_BLOCK_KEY (16, 24 or 32)")
	return c
}
