// Package cmd wires the swup command line front-end. Each sub-command
// builds one operation context and hands off to the bundle manager.
package cmd

import (
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/imgos/swup/internal/bundle"
	"github.com/imgos/swup/internal/config"
	"github.com/imgos/swup/internal/fetch"
	"github.com/imgos/swup/internal/msg"
	"github.com/imgos/swup/internal/status"
	"github.com/imgos/swup/internal/telemetry"
)

var (
	flagConfig        string
	flagPath          string
	flagStateDir      string
	flagContentURL    string
	flagVerbose       bool
	flagQuiet         bool
	flagSkipOptional  bool
	flagSkipDiskCheck bool
	flagNoTelemetry   bool
)

var rootCmd = &cobra.Command{
	Use:           "swup",
	Short:         "swup: manifest-driven OS bundle manager",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "C", config.DefaultConfigPath, "Path to the client configuration file")
	pf.StringVarP(&flagPath, "path", "p", "", "Use [PATH] as the path to the target OS to manage")
	pf.StringVarP(&flagStateDir, "statedir", "S", "", "Specify alternate state directory")
	pf.StringVarP(&flagContentURL, "contenturl", "c", "", "Specify alternate content location")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbosity")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Quiet output, print only the essentials")
	pf.BoolVar(&flagSkipOptional, "skip-optional", false, "Do not install optional bundles")
	pf.BoolVar(&flagSkipDiskCheck, "skip-diskspace-check", false, "Do not check free disk space before installing")
	pf.BoolVar(&flagNoTelemetry, "no-telemetry", false, "Do not record operation telemetry")
}

// newManager builds the operation context and manager from config + flags.
func newManager() (*bundle.Manager, *config.Context, error) {
	fs := osfs.New("/")
	cfg, err := config.Load(fs, flagConfig)
	if err != nil {
		return nil, nil, err
	}
	if flagPath != "" {
		cfg.PathPrefix = flagPath
	}
	if flagStateDir != "" {
		cfg.StateDir = flagStateDir
	}
	if flagContentURL != "" {
		cfg.ContentURL = flagContentURL
	}
	if flagSkipOptional {
		cfg.SkipOptional = true
	}
	if flagSkipDiskCheck {
		cfg.SkipDiskCheck = true
	}

	level := msg.Normal
	if flagVerbose {
		level = msg.Verbose
	}
	if flagQuiet {
		level = msg.Quiet
	}
	ctx := config.NewContext(cfg, fs, msg.New(os.Stdout, os.Stderr, level))

	var opts []bundle.Option
	if !flagNoTelemetry {
		if spool, err := telemetry.Open(fs.Join(cfg.StateDir, "telemetry.db")); err == nil {
			opts = append(opts, bundle.WithTelemetry(spool))
		} else {
			ctx.Log.Debug("telemetry spool unavailable: %v\n", err)
		}
	}

	mgr := bundle.NewManager(ctx, fetch.NewMirror(fs, cfg.ContentURL), opts...)
	return mgr, ctx, nil
}

// Execute runs the CLI and maps the result onto the exit-code taxonomy.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := status.CodeOf(err)
		if code == status.OK {
			code = status.UnexpectedCondition
		}
		os.Exit(int(code))
	}
}
