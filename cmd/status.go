package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/domteam/dom-session/internal/accesscontrol"
	"github.com/domteam/dom-session/internal/activecontext"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger := newLogger()
		deps, err := buildDeps(conf, logger)
		if err != nil {
			return err
		}

		cred, principal, err := deps.store.Load()
		if err != nil {
			pterm.Warning.Printf("Stored session was unreadable and has been removed: %v\n", err)
			return nil
		}
		if cred == nil {
			return fmt.Errorf("not logged in")
		}

		pterm.DefaultSection.Println("Session")

		expired := cred.Claims.IsExpired(time.Now())
		if expired {
			pterm.Warning.Printf("Token expired at %s, it will be discarded on next start\n", cred.ExpiresAt().Format(time.RFC1123))
		} else {
			pterm.Info.Printf("Logged in with token expiring at: %s\n", cred.ExpiresAt().Format(time.RFC1123))
		}

		pterm.Info.Printf("Principal: %s (%s)\n", principal.DisplayName, principal.ID)
		pterm.Info.Printf("Role: %s\n", principal.Role)
		if principal.ContactInfo.Email != "" {
			pterm.Info.Printf("Email: %s\n", principal.ContactInfo.Email)
		}

		resolver := activecontext.NewResolver(deps.client.WithBearer(cred.Raw), deps.kv, nil, logger)

		pterm.DefaultSection.Println("Active context")
		if active, ok := resolver.Active(); ok {
			pterm.Info.Printf("Local: %s (%s) as %s\n", active.GroupName, active.GroupID, active.Role)
		} else {
			pterm.Info.Println("Local: none selected")
		}

		if !expired {
			server, err := resolver.ServerActive(cmd.Context())
			switch {
			case err != nil:
				pterm.Warning.Printf("Couldn't ask the backend for its active context: %v\n", err)
			case server.GroupID == "":
				pterm.Info.Println("Backend: none selected")
			default:
				pterm.Info.Printf("Backend: %s as %s\n", server.GroupID, server.Role)
			}
		}

		pterm.DefaultSection.Println("Route access")
		perms := accesscontrol.FromConfig(conf)
		data := pterm.TableData{{"ROUTE", "ALLOWED", "ROLES"}}
		for _, r := range conf.AccessControl.Routes {
			allowed := "no"
			if perms.Allows(r.Prefix, principal.Role) {
				allowed = "yes"
			}
			data = append(data, []string{r.Prefix, allowed, strings.Join(r.Roles, ", ")})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}
