package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mahmudsudo/cargomon/internal/doctor"
)

func newDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor [path]",
		Short: "Check the environment for problems",
		Long: `Doctor verifies that the environment is ready for the watch loop:
cargo must be on PATH and recent enough, and the project manifest must
be readable with a package name declared.

Exits non-zero when any check fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			results := doctor.New(root).Run(cmd.Context())

			w := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(w, "%-8s %-20s %s\n", r.Status, r.Name, r.Message)
			}

			if doctor.AnyFailed(results) {
				return &ExitError{Code: 1, Err: fmt.Errorf("one or more checks failed")}
			}

			return nil
		},
	}

	return cmd
}
