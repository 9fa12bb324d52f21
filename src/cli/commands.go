package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Protocol-Lattice/specgen/src/host"
	"github.com/Protocol-Lattice/specgen/src/plan"
	"github.com/Protocol-Lattice/specgen/src/protocol"
)

func (r *runner) bridgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bridge",
		Short: "Serve the front-end message protocol as JSON lines on stdin and stdout",
		Long: `Bridge reads one JSON message per line from stdin (generatePlan, generateCode,
applyCode) and writes planGenerated, codeGenerated, notify and fileApplied messages
to stdout. Logs go to stderr unless log.file is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.build(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Host.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (r *runner) planCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "plan <request>",
		Short: "Generate a plan for a feature request and print it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unsupported format %q (want json or yaml)", format)
			}
			a, err := r.build(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			out := dispatch(cmd, a.Host, protocol.Inbound{
				Command: protocol.GeneratePlan,
				Text:    strings.Join(args, " "),
			})
			msg, ok := find(out, protocol.PlanGenerated)
			if !ok {
				return errors.New(host.MsgPlanFailed)
			}
			if msg.Error != "" {
				return fmt.Errorf("%s: %s", host.MsgPlanFailed, msg.Error)
			}
			return writePlan(cmd.OutOrStdout(), msg.Payload.(protocol.PlanPayload), format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

func (r *runner) codeCmd() *cobra.Command {
	var (
		step  plan.Step
		apply bool
	)
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Generate the full content of one file and optionally write it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.build(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			out := dispatch(cmd, a.Host, protocol.Inbound{Command: protocol.GenerateCode, Step: &step})
			msg, ok := find(out, protocol.CodeGenerated)
			if !ok {
				return errors.New("no code generated")
			}
			if msg.Error != "" {
				return fmt.Errorf("%s: %s", host.MsgCodeFailed, msg.Error)
			}
			code := msg.Payload.(protocol.CodePayload).Code
			if !apply {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), code)
				return err
			}

			out = dispatch(cmd, a.Host, protocol.Inbound{Command: protocol.ApplyCode, FilePath: step.File, Code: code})
			applied, ok := find(out, protocol.FileApplied)
			if !ok {
				return fmt.Errorf("failed to apply code to %s", step.File)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), applied.Payload.(protocol.AppliedPayload).Diff)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&step.File, "file", "", "workspace-relative file path")
	f.Var((*actionValue)(&step.Action), "action", "CREATE or MODIFY")
	f.StringVarP(&step.Description, "description", "d", "", "what to change in the file")
	f.BoolVar(&apply, "apply", false, "write the generated code and print the diff")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

// dispatch runs one message through h and echoes its notifications to stderr.
func dispatch(cmd *cobra.Command, h *host.Host, in protocol.Inbound) []protocol.Outbound {
	var c protocol.Collector
	h.Handle(cmd.Context(), in, &c)
	out := c.Drain()
	for _, o := range out {
		if n, ok := o.Payload.(protocol.NoticePayload); ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", n.Level, n.Message)
		}
	}
	return out
}

func find(out []protocol.Outbound, c protocol.Command) (protocol.Outbound, bool) {
	for _, o := range out {
		if o.Command == c {
			return o, true
		}
	}
	return protocol.Outbound{}, false
}

func writePlan(w io.Writer, p protocol.PlanPayload, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]plan.Plan{"plan": p.Plan}); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// actionValue adapts plan.Action to pflag.Value.
type actionValue plan.Action

func (a *actionValue) String() string { return string(*a) }

func (a *actionValue) Set(s string) error {
	act, err := plan.ParseAction(s)
	if err != nil {
		return err
	}
	*a = actionValue(act)
	return nil
}

func (a *actionValue) Type() string { return "action" }
