// Package cli configuration commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studious-lms/studious-files/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage studious-files configuration",
	}
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigSetCmd())
	return configCmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				// Show whatever is configured even when incomplete.
				cfg, err = config.Load(cfgFile)
				if err != nil {
					return err
				}
			}

			path := cfgFile
			if path == "" {
				if path, err = config.Path(); err != nil {
					return err
				}
			}

			cmd.Printf("Config file:  %s\n", path)
			cmd.Printf("Base URL:     %s\n", orUnset(cfg.BaseURL))
			cmd.Printf("API token:    %s\n", maskToken(cfg.APIToken))
			cmd.Printf("Class ID:     %s\n", orUnset(cfg.ClassID))
			cmd.Printf("Role:         %s\n", cfg.Role)
			cmd.Printf("Notifications: enabled=%v failures=%v completions=%v\n",
				cfg.Notifications.Enabled,
				cfg.Notifications.ShowActionFailed,
				cfg.Notifications.ShowActionComplete)
			return nil
		},
	}
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	var (
		setBaseURL string
		setToken   string
		setClass   string
		setRole    string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update and save configuration values",
		Long: `Update configuration values and write them to the config file.

Example:
  studious-files config set --base-url https://api.studious.sh --class class-9 --role teacher`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			if setBaseURL != "" {
				cfg.BaseURL = setBaseURL
			}
			if setToken != "" {
				cfg.APIToken = setToken
			}
			if setClass != "" {
				cfg.ClassID = setClass
			}
			if setRole != "" {
				cfg.Role = config.Role(setRole)
			}
			if cfg.Role != config.RoleTeacher && cfg.Role != config.RoleStudent {
				return fmt.Errorf("unknown role %q (want teacher or student)", cfg.Role)
			}

			if err := cfg.Save(cfgFile); err != nil {
				return err
			}
			cmd.Println("Configuration saved.")
			return nil
		},
	}

	cmd.Flags().StringVar(&setBaseURL, "base-url", "", "Backend API base URL")
	cmd.Flags().StringVar(&setToken, "api-token", "", "API token")
	cmd.Flags().StringVar(&setClass, "class", "", "Class ID")
	cmd.Flags().StringVar(&setRole, "role", "", "Acting role: teacher or student")
	return cmd
}

func orUnset(v string) string {
	if v == "" {
		return "(unset)"
	}
	return v
}

func maskToken(token string) string {
	if token == "" {
		return "(unset)"
	}
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
