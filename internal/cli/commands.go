package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ashureev/ailab/internal/api"
	"github.com/spf13/cobra"
)

func (o *options) withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func experimentsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "experiments",
		Short: "List available experiments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.withTimeout(cmd)
			defer cancel()
			exps, err := o.client().Experiments(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, heading(fmt.Sprintf("%d experiments", len(exps))))
			for _, e := range exps {
				fmt.Fprintf(out, "%s\t%s\n", e.ID, e.Title)
				fmt.Fprintln(out, labelStyle.Render(fmt.Sprintf("  %s · %s · %d min · %d steps", e.Subject, e.Level, e.DurationMinutes, e.TotalSteps)))
			}
			return nil
		},
	}
}

func showCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <experiment-id>",
		Short: "Show an experiment with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.withTimeout(cmd)
			defer cancel()
			exp, err := o.client().Experiment(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, heading(exp.Title))
			fmt.Fprintln(out, exp.Description)
			fmt.Fprintln(out, labelStyle.Render("Materials:"))
			for _, m := range exp.Materials {
				fmt.Fprintf(out, "  • %s\n", m)
			}
			for _, s := range exp.Steps {
				fmt.Fprintf(out, "%s %s\n", labelStyle.Render(fmt.Sprintf("Step %d:", s.Number)), s.Title)
			}
			return nil
		},
	}
}

var demoMessages = []string{
	"I'm ready to start. What should I do first?",
	"I set everything up and recorded the first measurement.",
	"The readings changed the way the instructions said they would.",
	"Is the experiment complete? Should we calculate the result?",
}

func demoCmd(o *options) *cobra.Command {
	var experimentID, student string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted session from start to report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.withTimeout(cmd)
			defer cancel()
			c := o.client()
			out := cmd.OutOrStdout()

			start, err := c.Start(ctx, api.StartRequest{ExperimentID: experimentID, StudentName: student})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, heading(start.ExperimentTitle))
			fmt.Fprintln(out, labelStyle.Render("session "+start.SessionID))
			fmt.Fprintln(out, speaker("partner", "Partner"), start.PartnerMessage)

			for i := 0; i < start.TotalSteps; i++ {
				msg := demoMessages[min(i, len(demoMessages)-1)]
				step := i + 1
				fmt.Fprintf(out, "\n%s\n", labelStyle.Render(fmt.Sprintf("── step %d ──", step)))
				fmt.Fprintln(out, speaker("student", student), msg)

				res, err := c.Interact(ctx, api.InteractRequest{
					SessionID:      start.SessionID,
					ExperimentID:   experimentID,
					StudentMessage: msg,
					CurrentStep:    &step,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(out, speaker("partner", "Partner"), res.PartnerMessage)
				fmt.Fprintln(out, speaker("mentor", "Mentor"), res.MentorGuidance)
				fmt.Fprintln(out, labelStyle.Render(fmt.Sprintf("progress %.0f%%", res.Progress)))
				if res.Computation != nil {
					fmt.Fprintln(out, resultStyle.Render(res.Computation.Query+"\n"+res.Computation.Result))
				}
			}

			done, err := c.Complete(ctx, start.SessionID, experimentID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, speaker("evaluator", "Evaluator"), done.EvaluatorFeedback)
			if done.Report.Saved {
				fmt.Fprintln(out, labelStyle.Render("report "+done.Report.Filename))
			} else {
				fmt.Fprintln(out, errorStyle.Render("report not saved: "+done.Report.Error))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&experimentID, "experiment", "acid_base_titration", "experiment id")
	cmd.Flags().StringVar(&student, "student", "Student", "student name")
	return cmd
}

func computeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compute <formula> [name=value ...]",
		Short: "Evaluate a formula on the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			ctx, cancel := o.withTimeout(cmd)
			defer cancel()
			res, err := o.client().Compute(ctx, args[0], params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resultStyle.Render(res.Query+"\n"+res.Result))
			return nil
		},
	}
}

func parseParams(args []string) (map[string]float64, error) {
	params := make(map[string]float64, len(args))
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q must look like name=value", a)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		params[name] = v
	}
	return params, nil
}

func reportsCmd(o *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List saved lab reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.withTimeout(cmd)
			defer cancel()
			recs, err := o.client().Reports(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, labelStyle.Render("no reports yet"))
				return nil
			}
			for _, r := range recs {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", r.SessionID, r.CreatedAt.Format("2006-01-02 15:04"), r.ScenarioID, r.StudentName)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of reports")
	return cmd
}

func reportCmd(o *options) *cobra.Command {
	var raw bool
	var width int
	cmd := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Show a lab report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.withTimeout(cmd)
			defer cancel()
			md, err := o.client().Report(ctx, args[0])
			if err != nil {
				return err
			}
			if raw {
				_, err = fmt.Fprint(cmd.OutOrStdout(), md)
				return err
			}
			rendered, err := renderMarkdown(md, width)
			if err != nil {
				return fmt.Errorf("render report: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering")
	cmd.Flags().IntVar(&width, "width", 100, "wrap width")
	return cmd
}

func healthCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.withTimeout(cmd)
			defer cancel()
			h, err := o.client().Health(ctx)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(h))
			for k := range h {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", labelStyle.Render(k+":"), h[k])
			}
			return nil
		},
	}
}

func versionCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), o.version)
		},
	}
}
