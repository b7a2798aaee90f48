package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"legalflow/pkg/model"
	"legalflow/pkg/render"
	"legalflow/pkg/retrieval"
)

// decodeFile reads JSON, or YAML for .yaml/.yml files, into v. YAML goes through JSON so both
// formats share the json field names.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("failed to parse YAML %s: %w", path, err)
		}
		if data, err = json.Marshal(generic); err != nil {
			return fmt.Errorf("failed to convert %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// loadCase reads one case file.
func loadCase(path string) (model.Case, error) {
	var c model.Case
	if err := decodeFile(path, &c); err != nil {
		return c, err
	}
	if c.ID == "" {
		c.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return c, nil
}

// ingestDefaults fill metadata that a source file leaves empty.
type ingestDefaults struct {
	DocumentType string
	Jurisdiction string
}

type sourceFrontmatter struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	DocumentType string   `yaml:"document_type"`
	Jurisdiction string   `yaml:"jurisdiction"`
	Court        string   `yaml:"court"`
	Citation     string   `yaml:"citation"`
	Date         string   `yaml:"date"`
	Tags         []string `yaml:"tags"`
}

// loadDocuments collects ingestion input from files and directories. JSON and YAML files hold
// one document or a list; Markdown and text files are one document each, with optional YAML
// frontmatter for metadata.
func loadDocuments(paths []string, defaults ingestDefaults) ([]retrieval.DocumentInput, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supportedSource(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}
	sort.Strings(files)

	var out []retrieval.DocumentInput
	for _, f := range files {
		docs, err := loadSource(f)
		if err != nil {
			return nil, err
		}
		for i := range docs {
			if docs[i].Metadata.DocumentType == "" {
				docs[i].Metadata.DocumentType = defaults.DocumentType
			}
			if docs[i].Metadata.Jurisdiction == "" {
				docs[i].Metadata.Jurisdiction = defaults.Jurisdiction
			}
			if docs[i].Source == "" {
				docs[i].Source = f
			}
		}
		out = append(out, docs...)
	}
	return out, nil
}

func supportedSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml", ".md", ".markdown", ".txt":
		return true
	}
	return false
}

func loadSource(path string) ([]retrieval.DocumentInput, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		var list []retrieval.DocumentInput
		if err := decodeFile(path, &list); err == nil {
			return list, nil
		}
		var one retrieval.DocumentInput
		if err := decodeFile(path, &one); err != nil {
			return nil, err
		}
		return []retrieval.DocumentInput{one}, nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		doc, err := textDocument(path, string(data))
		if err != nil {
			return nil, err
		}
		return []retrieval.DocumentInput{doc}, nil
	}
}

func textDocument(path, text string) (retrieval.DocumentInput, error) {
	doc := retrieval.DocumentInput{
		Title:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Content: text,
		Source:  path,
	}
	fm, body, err := render.SplitFrontmatter(text)
	if errors.Is(err, render.ErrNoFrontmatter) {
		if h := render.Headings(text); len(h) > 0 {
			doc.Title = h[0]
		}
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("%s: %w", path, err)
	}

	var meta sourceFrontmatter
	if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
		return doc, fmt.Errorf("failed to parse frontmatter in %s: %w", path, err)
	}
	doc.ID = meta.ID
	doc.Content = body
	if meta.Title != "" {
		doc.Title = meta.Title
	}
	doc.Metadata = retrieval.Metadata{
		DocumentType: meta.DocumentType,
		Jurisdiction: meta.Jurisdiction,
		Court:        meta.Court,
		Citation:     meta.Citation,
		Tags:         meta.Tags,
	}
	if meta.Date != "" {
		d, err := time.Parse(time.DateOnly, meta.Date)
		if err != nil {
			return doc, fmt.Errorf("invalid date %q in %s: %w", meta.Date, path, err)
		}
		doc.Metadata.Date = d
	}
	return doc, nil
}

// extensions maps a rendition format to the file extension it is written with.
//
//nolint:gochecknoglobals // static lookup table
var extensions = map[string]string{
	render.FormatHTML:     ".html",
	render.FormatMarkdown: ".md",
}

// writeDocuments writes every rendition of every document under dir/<workflowID>/ and returns
// the paths written.
func writeDocuments(dir, workflowID string, docs []model.GeneratedDocument) ([]string, error) {
	target := filepath.Join(dir, workflowID)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", target, err)
	}
	var written []string
	for _, doc := range docs {
		formats := make([]string, 0, len(doc.Renditions))
		for f := range doc.Renditions {
			formats = append(formats, f)
		}
		sort.Strings(formats)
		for _, f := range formats {
			ext, ok := extensions[f]
			if !ok {
				ext = "." + f
			}
			path := filepath.Join(target, string(doc.Type)+ext)
			if err := os.WriteFile(path, []byte(doc.Renditions[f].Body), 0o644); err != nil { //nolint:gosec // documents are not secret
				return written, fmt.Errorf("failed to write %s: %w", path, err)
			}
			written = append(written, path)
		}
	}
	return written, nil
}
