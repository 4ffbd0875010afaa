package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fromchat/internal/domain"
)

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <user-id>",
		Short: "Decrypt the conversation with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassword(); err != nil {
				return err
			}
			peer, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad user id %q", args[0])
			}
			if _, err := appCtx.Keys.EnsureKeysOnLogin(cmd.Context(), password); err != nil {
				return err
			}
			pub, err := appCtx.Relay.PublicKeyOf(cmd.Context(), domain.UserID(peer))
			if err != nil {
				return err
			}
			msgs, err := appCtx.DMs.History(cmd.Context(), domain.UserID(peer), pub)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				who := "them"
				if m.SenderID != domain.UserID(peer) {
					who = "me"
				}
				fmt.Printf("[%s] %s: %s\n", m.Timestamp, who, m.Plaintext)
			}
			return nil
		},
	}
}
