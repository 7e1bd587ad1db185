package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/strongdm/go-rollnotify/internal/cliconfig"
	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

var exampleUsage = strings.TrimSpace(`
  rollnotify report-message --level warning "disk almost full"
  rollnotify deploy create --revision $(git rev-parse HEAD) --environment production
  rollnotify deploy list --page 2
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return rollnotify.Version
}

// app is the state shared by all commands.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	out     io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{cfg: cliconfig.DefaultConfig(), out: out}

	root := &cobra.Command{
		Use:           "rollnotify",
		Short:         "Report messages and track deploys from the command line",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.rollnotify/config.toml)")
	flags.StringVar(&a.cfg.AccessToken, "access-token", a.cfg.AccessToken, "post_server_item access token")
	flags.StringVar(&a.cfg.ReadToken, "read-token", a.cfg.ReadToken, "read access token (defaults to the access token)")
	flags.StringVar(&a.cfg.Environment, "environment", a.cfg.Environment, "environment name")
	flags.StringVar(&a.cfg.Endpoint, "endpoint", a.cfg.Endpoint, "API base URL")
	flags.StringVar(&a.cfg.CodeVersion, "code-version", a.cfg.CodeVersion, "code version attached to reports")
	flags.StringVar(&a.cfg.Host, "host", a.cfg.Host, "host name attached to reports")
	flags.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "HTTP timeout")
	flags.BoolVar(&a.cfg.Verbose, "verbose", a.cfg.Verbose, "also print reported items to stderr")

	root.AddCommand(newReportMessageCmd(a), newDeployCmd(a))
	return root
}

// loadConfig layers the config file, then ROLLNOTIFY_* variables, under
// explicitly set flags.
func (a *app) loadConfig(cmd *cobra.Command) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	log := cliconfig.Logger()
	log.Debug().Interface("config", a.cfg.Redacted()).Msg("configuration")
	return nil
}
