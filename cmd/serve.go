package cmd

import (
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/domteam/dom-session/internal/webserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		server := webserver.New()
		if verbose {
			server.Logger().SetLevel(log.DEBUG)
		}

		server.Run(conf)
		return nil
	},
}
