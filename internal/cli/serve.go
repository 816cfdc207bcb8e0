package cli

import (
	"github.com/spf13/cobra"

	"github.com/probabilityIA/invoicing-console/internal/app"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and push-channel subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.RunServer()
			return nil
		},
	}

	return cmd
}
