package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fromchat/internal/app"
)

var (
	serverURL string
	wsURL     string
	token     string
	password  string
	verbose   bool

	appCtx *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:   "fromchat",
		Short: "End-to-end encrypted direct messages for FromChat",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				return fmt.Errorf("server base URL required (--server)")
			}
			if token == "" {
				return fmt.Errorf("bearer token required (--token)")
			}

			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().Timestamp().Logger()

			appCtx = app.NewWire(app.Config{
				ServerURL: serverURL,
				WSURL:     wsURL,
				Token:     token,
				Logger:    logger,
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			// One invocation is one session: wipe keys on the way out.
			if appCtx != nil {
				appCtx.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "", "REST base URL (e.g. https://chat.example.com/api)")
	root.PersistentFlags().StringVar(&wsURL, "ws", "", "websocket URL (e.g. wss://chat.example.com/api/chat/ws)")
	root.PersistentFlags().StringVar(&token, "token", "", "bearer token of the authenticated session")
	root.PersistentFlags().StringVarP(&password, "password", "p", "", "account password protecting the key backup")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(loginCmd(), pubkeyCmd(), sendCmd(), fetchCmd(), historyCmd(), listenCmd())
	return root.Execute()
}

func requirePassword() error {
	if password == "" {
		return fmt.Errorf("password required (-p)")
	}
	return nil
}
