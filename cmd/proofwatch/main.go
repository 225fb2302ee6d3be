// Package main provides proofwatch, a CLI that starts a form proof through
// the formproof API, shows the invitation as a terminal QR code and waits
// for the holder to present.
package main

import (
	"log"

	"github.com/spf13/cobra"

	"formproof/internal/platform/config"
)

func main() {
	defaults, err := config.WatchFromEnv()
	if err != nil {
		log.Fatalf("proofwatch: %s", err.Error())
	}

	rootCmd := &cobra.Command{
		Use:   "proofwatch",
		Short: "Start and watch verifiable credential proofs for forms",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	rootCmd.AddCommand(newWatchCmd(defaults))
	rootCmd.AddCommand(newStatusCmd(defaults))

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("proofwatch: %s", err.Error())
	}
}
