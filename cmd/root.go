package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "E-commerce storefront core",
}

var storefrontCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront HTTP service",
	Run: func(cmd *cobra.Command, args []string) {
		RunStorefrontService(cmd.Context())
	},
}

var notificationCmd = &cobra.Command{
	Use:   "notification",
	Short: "Run the order notification listener",
	Run: func(cmd *cobra.Command, args []string) {
		RunNotificationService(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(storefrontCmd)
	rootCmd.AddCommand(notificationCmd)
}

func Execute(c context.Context) error {
	return rootCmd.ExecuteContext(c)
}
