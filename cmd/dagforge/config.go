package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dagforge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify dagforge configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the value in the user config file.

Configuration is stored at ~/.config/dagforge/config.yaml
Project-specific overrides can be placed in .dagforge.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			return displayAllConfig(out)
		case 1:
			value, err := config.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, displayValue(args[0], value))
			return nil
		default:
			if err := config.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(out, "Set %s = %s\n", args[0], displayValue(args[0], args[1]))
			return nil
		}
	},
}

// displayAllConfig prints every key with its effective value.
func displayAllConfig(w io.Writer) error {
	for _, key := range config.Keys() {
		value, err := config.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", key, displayValue(key, value))
	}
	fmt.Fprintf(w, "\nAPI key source: %s\n", config.GetAPIKeySource(cfg))
	if path := config.GetProjectConfigPath(); path != "" {
		fmt.Fprintf(w, "Project config: %s\n", path)
	}
	fmt.Fprintf(w, "User config:    %s\n", config.GetUserConfigPath())
	return nil
}

// displayValue masks secrets.
func displayValue(key string, value any) string {
	s := fmt.Sprint(value)
	if strings.HasSuffix(key, "api_key") {
		return config.MaskAPIKey(s)
	}
	return s
}
