package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"legalflow/internal/kernel"
	"legalflow/internal/opsserver"
	"legalflow/pkg/model"
	"legalflow/pkg/orchestrator"
)

type runOptions struct {
	*rootOptions
	outDir  string
	opsAddr string
}

type runSummary struct {
	File       string   `json:"file"`
	WorkflowID string   `json:"workflow_id"`
	CaseID     string   `json:"case_id"`
	Status     string   `json:"status"`
	Documents  int      `json:"documents"`
	Files      []string `json:"files,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "run CASE_FILE...",
		Short: "Run cases through intake, research and drafting",
		Long: `Run queues one workflow per case file (JSON or YAML) and waits for all of them.
Drafted documents are written to <out>/<workflow id>/<document type>.<ext> when --out is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return opts.run(ctx, cmd.OutOrStdout(), args)
		},
	}
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "directory to write drafted documents to")
	cmd.Flags().StringVar(&opts.opsAddr, "ops", "", "serve health, metrics and workflow state on this address while running")
	return cmd
}

func (o *runOptions) run(ctx context.Context, w io.Writer, files []string) error {
	cases := make([]model.Case, len(files))
	for i, f := range files {
		c, err := loadCase(f)
		if err != nil {
			return err
		}
		cases[i] = c
	}

	results := make(chan orchestrator.Result, len(cases))
	k, err := o.startKernel(ctx, kernel.WithResultHandler(func(r orchestrator.Result) { results <- r }))
	if err != nil {
		return err
	}
	defer func() { _ = k.Stop() }()

	if o.opsAddr != "" {
		opsCtx, cancelOps := context.WithCancel(ctx)
		defer cancelOps()
		srv := opsserver.NewForKernel(k)
		go func() {
			if err := srv.ListenAndServe(opsCtx, o.opsAddr); err != nil {
				fmt.Fprintf(os.Stderr, "ops server: %v\n", err)
			}
		}()
	}

	summaries := make(map[string]*runSummary, len(cases))
	order := make([]string, 0, len(cases))
	pending := 0
	collect := func(r orchestrator.Result) {
		pending--
		s := summaries[r.WorkflowID]
		if s == nil {
			return
		}
		s.finish(r, o.outDir)
	}

	for i, c := range cases {
		var id string
		for {
			id, err = k.Submit(ctx, c)
			if !errors.Is(err, orchestrator.ErrQueueFull) || pending == 0 {
				break
			}
			select {
			case r := <-results:
				collect(r)
			case <-ctx.Done():
				return ctx.Err() //nolint:wrapcheck // cancellation
			}
		}
		if err != nil {
			return fmt.Errorf("failed to submit %s: %w", files[i], err)
		}
		pending++
		summaries[id] = &runSummary{File: files[i], WorkflowID: id, CaseID: c.ID, Status: "queued"}
		order = append(order, id)
	}

	for pending > 0 {
		select {
		case r := <-results:
			collect(r)
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // cancellation
		}
	}

	out := make([]*runSummary, 0, len(order))
	failed := 0
	for _, id := range order {
		s := summaries[id]
		if s.Error != "" {
			failed++
		}
		out = append(out, s)
	}
	if err := o.printSummaries(w, out); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d workflows failed", failed, len(out))
	}
	return nil
}

func (s *runSummary) finish(r orchestrator.Result, outDir string) {
	s.Documents = len(r.Case.Documents)
	if r.Err != nil {
		s.Status = "failed"
		s.Error = r.Err.Error()
		return
	}
	s.Status = "completed"
	if outDir == "" {
		return
	}
	written, err := writeDocuments(outDir, r.WorkflowID, r.Case.Documents)
	s.Files = written
	if err != nil {
		s.Error = err.Error()
	}
}

func (o *runOptions) printSummaries(w io.Writer, out []*runSummary) error {
	if o.jsonOutput() {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out) //nolint:wrapcheck // stdout
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKFLOW\tCASE\tSTATUS\tDOCUMENTS\tDETAIL")
	for _, s := range out {
		detail := s.Error
		if detail == "" && len(s.Files) > 0 {
			detail = fmt.Sprintf("%d files written", len(s.Files))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.WorkflowID, s.CaseID, s.Status, s.Documents, detail)
	}
	return tw.Flush() //nolint:wrapcheck // stdout
}
