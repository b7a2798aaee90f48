package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"legalflow/pkg/metrics"
)

func newUsageCmd(opts *rootOptions) *cobra.Command {
	var prometheusURL string
	cmd := &cobra.Command{
		Use:   "usage WORKFLOW_ID",
		Short: "Show llm token usage of a workflow from Prometheus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if prometheusURL == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				prometheusURL = cfg.Metrics.PrometheusURL
			}
			if prometheusURL == "" {
				return errors.New("no Prometheus URL: set metrics.prometheus_url or pass --prometheus")
			}

			qs, err := metrics.NewQueryService(prometheusURL)
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			usage, err := qs.WorkflowUsage(cmd.Context(), args[0])
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}

			w := cmd.OutOrStdout()
			if opts.jsonOutput() {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(usage) //nolint:wrapcheck // stdout
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SCOPE\tPROMPT\tCOMPLETION\tTOTAL")
			row := func(scope string, u metrics.TokenUsage) {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", scope, u.PromptTokens, u.CompletionTokens, u.TotalTokens)
			}
			for _, m := range usage.Models() {
				row("model "+m, usage.ByModel[m])
			}
			agents := make([]string, 0, len(usage.ByAgent))
			for a := range usage.ByAgent {
				agents = append(agents, a)
			}
			sort.Strings(agents)
			for _, a := range agents {
				row("agent "+a, usage.ByAgent[a])
			}
			row("total", usage.Total)
			return tw.Flush() //nolint:wrapcheck // stdout
		},
	}
	cmd.Flags().StringVar(&prometheusURL, "prometheus", "", "Prometheus server URL (default metrics.prometheus_url)")
	return cmd
}
