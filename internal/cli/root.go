// Package cli implements the workoutchat command line client.
package cli

import (
	"alcyxob/workout-chat/internal/client"
	"alcyxob/workout-chat/internal/config"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	configDir string
	baseURL   string
	token     string
	unitID    string
	verbose   bool

	cfg    config.ClientConfig
	logger *zap.Logger
}

// NewRootCmd builds the command tree. Each call returns independent state.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "workoutchat",
		Short: "Chat with the workout assistant and save the plans it drafts",
		Long: `workoutchat talks to a workout chat server.

Log in once, pick a unit and describe the workouts you want. The assistant
streams drafts back; refine them with follow-up messages and save them with
/approve.

Quick Start:
  workoutchat login --email me@example.com --password ...
  workoutchat units
  workoutchat chat --unit <unit-id>`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.PersistentFlags().StringVar(&opts.configDir, "config", ".", "Directory containing config.yaml")
	root.PersistentFlags().StringVar(&opts.baseURL, "server", "", "Server base URL (overrides client.base_url)")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "Bearer token (overrides client.token)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(newLoginCmd(opts), newUnitsCmd(opts), newChatCmd(opts))
	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(o.configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o.cfg = cfg.Client
	if cmd.Flags().Changed("server") {
		o.cfg.BaseURL = o.baseURL
	}
	if cmd.Flags().Changed("token") {
		o.cfg.Token = o.token
	}
	if o.unitID != "" {
		o.cfg.UnitID = o.unitID
	}

	o.logger = zap.NewNop()
	if o.verbose {
		if o.logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}
	return nil
}

func (o *options) client() *client.Client {
	return client.New(o.cfg.BaseURL, client.WithToken(o.cfg.Token))
}

func (o *options) requireToken() error {
	if o.cfg.Token == "" {
		return errors.New("not logged in: run `workoutchat login` and set CLIENT_TOKEN, or pass --token")
	}
	return nil
}
