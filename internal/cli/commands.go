package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLoginCmd(opts *options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := opts.client().Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successStyle.Render("Logged in."))
			fmt.Fprintln(out, hintStyle.Render("Use the token with --token or export it:"))
			fmt.Fprintf(out, "export CLIENT_TOKEN=%s\n", token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUnitsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "List the units you can chat in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireToken(); err != nil {
				return err
			}
			units, err := opts.client().ListUnits(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(units) == 0 {
				fmt.Fprintln(out, hintStyle.Render("No units yet."))
				return nil
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d unit(s)", len(units))))
			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			for _, u := range units {
				fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, draftTitleStyle.Render(u.Name), hintStyle.Render(u.Description))
			}
			return w.Flush()
		},
	}
}
