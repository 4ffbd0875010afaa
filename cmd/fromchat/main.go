package main

import (
	"os"

	"fromchat/cmd/fromchat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
