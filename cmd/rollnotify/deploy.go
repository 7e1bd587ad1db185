package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/strongdm/go-rollnotify/internal/cliconfig"
	"github.com/strongdm/go-rollnotify/pkg/deploy"
)

func newDeployCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Record and inspect deploys",
	}
	cmd.AddCommand(newDeployCreateCmd(a), newDeployGetCmd(a), newDeployListCmd(a))
	return cmd
}

func (a *app) deployClient() *deploy.Client {
	return deploy.New(a.cfg.Endpoint, deploy.WithTimeout(a.cfg.Timeout))
}

func newDeployCreateCmd(a *app) *cobra.Command {
	var d deploy.Deploy

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a deploy of a revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.cfg.WriteToken()
			if err != nil {
				return err
			}
			d.Environment = a.cfg.Environment
			if d.LocalUsername == "" {
				d.LocalUsername = os.Getenv("USER")
			}

			id, err := a.deployClient().CreateDeploy(cmd.Context(), token, d)
			if err != nil {
				return err
			}
			log := cliconfig.Logger()
			log.Info().Int64("deploy_id", id).Str("revision", d.Revision).Msg("deploy recorded")
			_, err = fmt.Fprintln(a.out, id)
			return err
		},
	}

	cmd.Flags().StringVar(&d.Revision, "revision", "", "deployed revision (required)")
	cmd.Flags().StringVar(&d.LocalUsername, "local-username", "", "user who deployed (default: $USER)")
	cmd.Flags().StringVar(&d.RollbarUsername, "rollbar-username", "", "account user who deployed")
	cmd.Flags().StringVar(&d.Comment, "comment", "", "deploy comment")
	return cmd
}

func newDeployGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get DEPLOY_ID",
		Short: "Show one deploy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid deploy id %q: %w", args[0], err)
			}
			token, err := a.cfg.ReadOnlyToken()
			if err != nil {
				return err
			}
			d, err := a.deployClient().GetDeploy(cmd.Context(), token, id)
			if err != nil {
				return err
			}
			return a.printJSON(d)
		},
	}
}

func newDeployListCmd(a *app) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deploys, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.cfg.ReadOnlyToken()
			if err != nil {
				return err
			}
			p, err := a.deployClient().ListDeploys(cmd.Context(), token, page)
			if err != nil {
				return err
			}
			return a.printJSON(p)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	return cmd
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
