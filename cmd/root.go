package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/domteam/dom-session/internal/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "dom-session",
	Short: "Session and multi-context authorization gateway for the DOM backend",
	Long: `dom-session signs a principal in against the DOM auth API, keeps the session token
fresh, picks the household context it operates under and gates page routes by role.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logoutCmd)
}

// loadConfig falls back to the defaults when the default config file is absent.
// A path passed explicitly must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	conf, err := config.LoadFromTomlFileAndValidate(configPath)
	if err == nil {
		return conf, nil
	}

	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		conf = config.Default()
		return conf, conf.Validate()
	}

	return nil, fmt.Errorf("failed to load config: %w", err)
}

func newLogger() *log.Logger {
	logger := log.New("dom-session")
	logger.SetLevel(log.WARN)
	if verbose {
		logger.SetLevel(log.DEBUG)
	}
	return logger
}
