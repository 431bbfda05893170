package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *App) newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:         "config",
		Short:       "Configuration management",
		Annotations: map[string]string{offline: "true"},
	}

	configCmd.AddCommand(&cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration as YAML",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{offline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(a.out)
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	})
	return configCmd
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{offline: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "trading-terminal %s\n", Version)
		},
	}
}
