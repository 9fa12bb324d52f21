// Package cli builds the specgen cobra commands.
package cli

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Protocol-Lattice/specgen/src"
	"github.com/Protocol-Lattice/specgen/src/app"
	"github.com/Protocol-Lattice/specgen/src/config"
)

// runner carries the state shared by every subcommand.
type runner struct {
	v       *viper.Viper
	cfgFile string
	appOpts app.Options
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd(app.Options{}).ExecuteContext(ctx)
}

// NewRootCmd builds the command tree. opts is passed to every app it builds.
func NewRootCmd(opts app.Options) *cobra.Command {
	r := &runner{v: viper.New(), appOpts: opts}

	root := &cobra.Command{
		Use:   "specgen",
		Short: "Turn a feature request into a plan of file changes and generate each file",
		Long: `SpecGen asks a chat-completion model for a step-by-step plan of file changes
implementing a feature request, then generates the full content of each file.
Without a subcommand it opens the interactive panel.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Init(r.v, r.cfgFile)
		},
		RunE: r.runPanel,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&r.cfgFile, "config", "c", "", "config file (default is $HOME/.config/specgen/config.yaml)")
	pf.StringP("workspace", "w", "", "workspace root (default is the working directory)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-file", "", "write logs to this file")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address")
	_ = r.v.BindPFlag("workspace", pf.Lookup("workspace"))
	_ = r.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = r.v.BindPFlag("log.file", pf.Lookup("log-file"))
	_ = r.v.BindPFlag("metrics.addr", pf.Lookup("metrics-addr"))

	root.AddCommand(r.bridgeCmd(), r.planCmd(), r.codeCmd())
	return root
}

// build loads the configuration and wires an app. logs go to w unless a log file is set.
func (r *runner) build(ctx context.Context, w io.Writer) (*app.App, error) {
	cfg, err := config.Load(r.v)
	if err != nil {
		return nil, err
	}
	opts := r.appOpts
	if opts.LogFallback == nil {
		opts.LogFallback = w
	}
	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	a.ServeMetrics(ctx)
	return a, nil
}

func (r *runner) runPanel(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := r.build(ctx, io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	m := src.NewModel(ctx, a.Host, src.Options{
		Model:  a.Config.Model,
		Logger: a.Logger.Logger,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
