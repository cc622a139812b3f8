package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"meterbill/internal/billing/application"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every setting",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				values, err := a.svc.Settings(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				for _, key := range application.SettingKeys() {
					fmt.Fprintf(tw, "%s\t%s\n", key, values[key])
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := a.svc.Setting(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Store one setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.svc.SaveSetting(cmd.Context(), args[0], args[1])
			},
		},
	)
	return cmd
}
