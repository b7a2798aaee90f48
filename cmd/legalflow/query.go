package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"legalflow/pkg/retrieval"
	"legalflow/pkg/utils"
)

type queryOptions struct {
	*rootOptions
	k             int
	types         []string
	jurisdictions []string
	threshold     float64
	minScore      float64
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	opts := &queryOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "query TEXT...",
		Short: "Search the retrieval index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}
	cmd.Flags().IntVarP(&opts.k, "k", "k", retrieval.DefaultMaxResults, "number of neighbours to fetch")
	cmd.Flags().StringSliceVar(&opts.types, "type", nil, "restrict to these document types")
	cmd.Flags().StringSliceVar(&opts.jurisdictions, "jurisdiction", nil, "restrict to these jurisdictions")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "minimum similarity returned by the index")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "minimum score after filtering")
	return cmd
}

func (o *queryOptions) run(ctx context.Context, w io.Writer, text string) error {
	k, err := o.startKernel(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = k.Stop() }()

	res, err := k.Engine.Query(ctx, retrieval.QueryRequest{
		Text:       text,
		MaxResults: o.k,
		Threshold:  o.threshold,
		Filters: retrieval.Filters{
			DocumentTypes: o.types,
			Jurisdictions: o.jurisdictions,
			MinScore:      o.minScore,
		},
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if o.jsonOutput() {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res) //nolint:wrapcheck // stdout
	}
	if len(res.Documents) == 0 {
		fmt.Fprintln(w, "No matching documents")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tID\tTYPE\tJURISDICTION\tTITLE")
	for _, d := range res.Documents {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\t%s\n", d.Score, d.ExternalID, d.Metadata.DocumentType,
			d.Metadata.Jurisdiction, utils.TruncateRunes(d.Title, 60))
	}
	if err := tw.Flush(); err != nil {
		return err //nolint:wrapcheck // stdout
	}
	fmt.Fprintf(w, "\n%d results, confidence %.3f, %s\n", res.TotalResults, res.Confidence, res.Took)
	return nil
}
