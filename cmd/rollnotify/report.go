package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strongdm/go-rollnotify/internal/cliconfig"
	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
	"github.com/strongdm/go-rollnotify/pkg/rollnotify/transports/console"
	"github.com/strongdm/go-rollnotify/pkg/rollnotify/transports/multi"
)

func newReportMessageCmd(a *app) *cobra.Command {
	var (
		level       string
		title       string
		fingerprint string
		custom      map[string]string
	)

	cmd := &cobra.Command{
		Use:   "report-message MESSAGE...",
		Short: "Report a message and wait for delivery",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.cfg.WriteToken()
			if err != nil {
				return err
			}
			lvl, err := rollnotify.ParseLevel(level)
			if err != nil {
				return err
			}

			payload := map[string]any{"level": string(lvl)}
			if title != "" {
				payload["title"] = title
			}
			if fingerprint != "" {
				payload["fingerprint"] = fingerprint
			}
			if len(custom) > 0 {
				m := make(map[string]any, len(custom))
				for k, v := range custom {
					m[k] = v
				}
				payload["custom"] = m
			}
			return a.reportMessage(cmd.Context(), token, strings.Join(args, " "), payload)
		},
	}

	cmd.Flags().StringVar(&level, "level", string(rollnotify.LevelError), "debug, info, warning, error or critical")
	cmd.Flags().StringVar(&title, "title", "", "item title")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "grouping fingerprint")
	cmd.Flags().StringToStringVar(&custom, "custom", nil, "custom data as key=value pairs")
	return cmd
}

func (a *app) reportMessage(ctx context.Context, token, msg string, payload map[string]any) error {
	var transport rollnotify.Transport = rollnotify.NewHTTPTransport(a.cfg.Endpoint, rollnotify.WithHTTPTimeout(a.cfg.Timeout))
	if a.cfg.Verbose {
		transport = multi.New(transport, console.New(console.WithOutput(os.Stderr), console.WithVerbose()))
	}

	opts := []rollnotify.Option{
		rollnotify.WithEndpoint(a.cfg.Endpoint),
		rollnotify.WithHandler(rollnotify.ModeInline),
		rollnotify.WithFramework("cli"),
		rollnotify.WithTransport(transport),
	}
	if a.cfg.Environment != "" {
		opts = append(opts, rollnotify.WithEnvironment(a.cfg.Environment))
	}
	if a.cfg.CodeVersion != "" {
		opts = append(opts, rollnotify.WithCodeVersion(a.cfg.CodeVersion))
	}
	if a.cfg.Host != "" {
		opts = append(opts, rollnotify.WithHost(a.cfg.Host))
	}

	n := rollnotify.New()
	if err := n.Init(token, opts...); err != nil {
		return err
	}

	var (
		delivered *rollnotify.Item
		sendErr   error
	)
	reportErr := n.ReportMessageWithPayloadData(ctx, msg, payload, nil, func(item *rollnotify.Item, _ *rollnotify.Response, err error) {
		delivered, sendErr = item, err
	})
	shutdownErr := n.Shutdown(ctx)

	if err := errors.Join(reportErr, sendErr, shutdownErr); err != nil {
		return err
	}
	log := cliconfig.Logger()
	log.Info().Str("uuid", delivered.UUID).Str("level", string(delivered.Level)).Msg("message reported")
	_, err := fmt.Fprintln(a.out, delivered.UUID)
	return err
}
