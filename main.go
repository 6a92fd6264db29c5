package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discordsync",
		Short: "Discord to Minecraft role sync bridge",
		Long: `discordsync links Minecraft accounts to Discord accounts and mirrors Discord
role assignments onto LuckPerms permission groups. The game-server plugin talks
to it over the bridge HTTP API.`,
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newRegisterCommand())
	cmd.AddCommand(newTokenCommand())

	return cmd
}
