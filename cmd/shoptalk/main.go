package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "shoptalk",
		Short: "Social commerce inbox server",
		Long:  "shoptalk receives WhatsApp, Instagram, and Facebook Messenger webhooks, reconciles them into per-customer chats, and serves the merchant inbox API.",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API and webhook server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
	root.AddCommand(serveCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
