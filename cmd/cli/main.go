package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/datafed/cloudnode/cli"
	"github.com/datafed/cloudnode/pkg/sdk"
)

const defServerURL = "http://localhost:8999"

func main() {
	var serverURL string
	var tlsVerification bool

	rootCmd := &cobra.Command{
		Use:   "cloudnode-cli",
		Short: "Cloudnode CLI",
		Long:  `Cloudnode CLI is a command line interface for interacting with a cloudnode coordinator.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			s := sdk.NewSDK(sdk.Config{
				ServerURL:       serverURL,
				TLSVerification: tlsVerification,
			})
			cli.SetSDK(s)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server-url", "s", defServerURL, "Coordinator URL")
	rootCmd.PersistentFlags().BoolVar(&tlsVerification, "tls-verification", false, "Verify TLS certificates")

	rootCmd.AddCommand(cli.NewSessionsCmd())
	rootCmd.AddCommand(cli.NewReposCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
