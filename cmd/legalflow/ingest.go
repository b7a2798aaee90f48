package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type ingestOptions struct {
	*rootOptions
	defaults ingestDefaults
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	opts := &ingestOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "ingest PATH...",
		Short: "Add legal authorities to the retrieval index",
		Long: `Ingest embeds documents and appends them to the retrieval index.
JSON and YAML files hold one document or a list of documents. Markdown and text files are one
document each; YAML frontmatter supplies title, document_type, jurisdiction, court, citation,
date (YYYY-MM-DD) and tags. Directories are walked recursively.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
	cmd.Flags().StringVar(&opts.defaults.DocumentType, "type", "", "document type for documents that do not set one")
	cmd.Flags().StringVar(&opts.defaults.Jurisdiction, "jurisdiction", "", "jurisdiction for documents that do not set one")
	return cmd
}

func (o *ingestOptions) run(ctx context.Context, w io.Writer, paths []string) error {
	docs, err := loadDocuments(paths, o.defaults)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents found in %v", paths)
	}

	k, err := o.startKernel(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = k.Stop() }()

	indexed, err := k.Engine.AddDocuments(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingested %d of %d documents: %w", len(indexed), len(docs), err)
	}

	if o.jsonOutput() {
		type ingested struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		out := make([]ingested, len(indexed))
		for i, d := range indexed {
			out[i] = ingested{ID: d.ExternalID, Title: d.Title}
		}
		return json.NewEncoder(w).Encode(out) //nolint:wrapcheck // stdout
	}
	stats := k.Engine.Stats()
	fmt.Fprintf(w, "Ingested %d documents (%d in index)\n", len(indexed), stats.DocumentCount)
	return nil
}
