package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"fromchat/internal/crypto"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Restore or provision this account's DM keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassword(); err != nil {
				return err
			}
			keys, err := appCtx.Keys.EnsureKeysOnLogin(cmd.Context(), password)
			if err != nil {
				return err
			}
			fmt.Printf("Keys ready.\nFingerprint: %s\n", crypto.Fingerprint(keys.Public))
			return nil
		},
	}
}
