package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paperlens/mathdex/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON bool
	var short bool

	cmd := &cobra.Command{
		Use: "version", Short: "Print build and version details",
		Long: `Print the mathdex version along with git commit, build date, and Go toolchain details.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			switch {
			case short:
				// --short wins when both flags are set
				_, err := fmt.Fprintln(stdout, version.Version)
				return err
			case asJSON:
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(version.Current())
			default:
				_, err := fmt.Fprintln(stdout, version.Current())
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version info as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")

	return cmd
}
