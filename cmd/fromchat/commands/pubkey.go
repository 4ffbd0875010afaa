package commands

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"fromchat/internal/crypto"
)

func pubkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey",
		Short: "Print this account's public key and fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassword(); err != nil {
				return err
			}
			keys, err := appCtx.Keys.EnsureKeysOnLogin(cmd.Context(), password)
			if err != nil {
				return err
			}
			fmt.Printf("Public key:  %s\n", base64.StdEncoding.EncodeToString(keys.Public.Slice()))
			fmt.Printf("Fingerprint: %s\n", crypto.Fingerprint(keys.Public))
			return nil
		},
	}
}
