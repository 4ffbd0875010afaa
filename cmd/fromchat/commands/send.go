package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fromchat/internal/domain"
)

// send <user-id> <message>: encrypt and deliver a DM.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <user-id> <message>",
		Short: "Encrypt and send a direct message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassword(); err != nil {
				return err
			}
			recipient, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad user id %q", args[0])
			}
			if _, err := appCtx.Keys.EnsureKeysOnLogin(cmd.Context(), password); err != nil {
				return err
			}
			pub, err := appCtx.Relay.PublicKeyOf(cmd.Context(), domain.UserID(recipient))
			if err != nil {
				return err
			}
			if err := appCtx.DMs.Send(cmd.Context(), domain.UserID(recipient), pub, []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("sent")
			return nil
		},
	}
}
