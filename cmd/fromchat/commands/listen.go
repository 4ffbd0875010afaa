package commands

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"fromchat/internal/domain"
)

// listen: stay connected and print DMs as they arrive.
func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Stream and decrypt incoming direct messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassword(); err != nil {
				return err
			}
			if wsURL == "" {
				return fmt.Errorf("websocket URL required (--ws)")
			}
			if _, err := appCtx.Keys.EnsureKeysOnLogin(cmd.Context(), password); err != nil {
				return err
			}

			ch, err := appCtx.ConnectPush(cmd.Context(), func(env domain.DmEnvelope) {
				pub, err := appCtx.Relay.PublicKeyOf(cmd.Context(), env.SenderID)
				if err != nil {
					return
				}
				msg, err := appCtx.DMs.Decrypt(env, pub)
				if err != nil {
					return // undecryptable; already logged by the service
				}
				fmt.Printf("[%s] from %d: %s\n", msg.Timestamp, msg.SenderID, msg.Plaintext)
			})
			if err != nil {
				return err
			}
			defer ch.Close()

			fmt.Println("listening, ctrl-c to stop")
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt)
			<-stop
			return nil
		},
	}
}
