package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and purge the stored session",
	Long: `Tells the backend the stored token is no longer in use, then removes the token,
the cached principal and the active context from local storage. Signing out always
succeeds locally, even when the backend can't be reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		deps, err := buildDeps(conf, newLogger())
		if err != nil {
			return err
		}

		deps.manager.Initialize()
		wasSignedIn := deps.manager.IsAuthenticated()
		deps.manager.Logout(cmd.Context())

		if !wasSignedIn {
			pterm.Info.Println("No active session, local storage purged")
			return nil
		}

		pterm.Success.Println("Logged out successfully")
		fmt.Printf("Removed %s\n", conf.Session.StoragePath)
		return nil
	},
}
