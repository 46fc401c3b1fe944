package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mahmudsudo/cargomon/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Config prints the fully resolved configuration as YAML, after
merging flags, CARGOMON_* environment variables, and the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}

			if cfg.ConfigFile != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", cfg.ConfigFile)
			}

			_, err = cmd.OutOrStdout().Write(out)

			return err
		},
	}

	return cmd
}
