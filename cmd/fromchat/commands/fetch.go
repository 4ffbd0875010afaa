package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func fetchCmd() *cobra.Command {
	var since int64
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and decrypt pending direct messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassword(); err != nil {
				return err
			}
			if _, err := appCtx.Keys.EnsureKeysOnLogin(cmd.Context(), password); err != nil {
				return err
			}
			msgs, err := appCtx.DMs.Fetch(cmd.Context(), since)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Printf("[%s] from %d: %s\n", m.Timestamp, m.SenderID, m.Plaintext)
			}
			if len(msgs) == 0 {
				fmt.Println("no new messages")
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "only messages newer than this id")
	return cmd
}
