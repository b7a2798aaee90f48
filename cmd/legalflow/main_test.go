package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/model"
	"legalflow/pkg/render"
)

const testConfig = `
embedding:
  dimension: 64
retrieval:
  dir: %DIR%/vectors
persistence:
  driver: sqlite
  path: %DIR%/workflows.db
eventlog:
  enabled: false
`

const caseYAML = `
id: case-yaml
title: Hopper v. Compiler Co.
category: contract-dispute
urgency: medium
court_level: district
complexity: medium
jurisdiction: Massachusetts
description: The vendor failed to deliver the compiler licences agreed in the contract.
issues:
  - breach of contract
plaintiff:
  first_name: Grace
  last_name: Hopper
  email: grace@example.com
  phone: 555-010-1234
  address:
    street: 1 Navy Yard
    city: Boston
    state: MA
    zip_code: "02129"
`

const authority = `---
title: Hadley v. Baxendale
document_type: case-law
court: Court of Exchequer
citation: (1854) 9 Exch 341
date: 1854-02-23
tags: [damages, contract]
---
# Hadley v. Baxendale

Damages for breach of contract are limited to losses arising naturally from the breach.
`

type cliEnv struct {
	dir        string
	configPath string
	secretsDir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := &cliEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "legalflow.yaml"),
		secretsDir: filepath.Join(dir, "secrets"),
	}
	cfg := strings.ReplaceAll(testConfig, "%DIR%", dir)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o600))
	t.Setenv(PasswordEnv, "correct horse battery staple")
	return env
}

func (e *cliEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (e *cliEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath, "--secrets-dir", e.secretsDir}, args...))
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestIngestQueryRun(t *testing.T) {
	env := newCLIEnv(t)
	env.write(t, "authorities/hadley.md", authority)
	env.write(t, "authorities/statutes.json", `[
		{"id": "ucc-2-713", "title": "UCC 2-713", "content": "Buyer's damages for non-delivery or repudiation.",
		 "metadata": {"document_type": "statute"}}
	]`)

	out, err := env.execute(t, "ingest", filepath.Join(env.dir, "authorities"), "--jurisdiction", "federal")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 2 documents (2 in index)")

	out, err = env.execute(t, "--format", "json", "query", "damages", "for", "breach", "--type", "case-law")
	require.NoError(t, err)
	var res struct {
		Documents []struct {
			Title    string `json:"title"`
			Metadata struct {
				Jurisdiction string `json:"jurisdiction"`
				Court        string `json:"court"`
			} `json:"metadata"`
		} `json:"documents"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "Hadley v. Baxendale", res.Documents[0].Title)
	assert.Equal(t, "federal", res.Documents[0].Metadata.Jurisdiction)
	assert.Equal(t, "Court of Exchequer", res.Documents[0].Metadata.Court)

	casePath := env.write(t, "cases/hopper.yaml", caseYAML)
	outDir := filepath.Join(env.dir, "out")
	out, err = env.execute(t, "run", casePath, "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "case-yaml")
	assert.Contains(t, out, "completed")

	written, err := filepath.Glob(filepath.Join(outDir, "*", "*.html"))
	require.NoError(t, err)
	assert.NotEmpty(t, written)
	md, err := filepath.Glob(filepath.Join(outDir, "*", string(model.DocComplaint)+".md"))
	require.NoError(t, err)
	require.Len(t, md, 1)
	body, err := os.ReadFile(md[0])
	require.NoError(t, err)
	fm, _, err := render.ParseFrontmatter(string(body))
	require.NoError(t, err)
	assert.Equal(t, "case-yaml", fm.CaseID)

	out, err = env.execute(t, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "retrieval")
	assert.Contains(t, out, "store")
}

func TestRunReportsFailedCase(t *testing.T) {
	env := newCLIEnv(t)
	bad := env.write(t, "bad.json", `{"id": "bad", "category": "contract-dispute"}`)

	out, err := env.execute(t, "run", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 workflows failed")
	assert.Contains(t, out, "failed")
}

func TestSecretsSetAndList(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.execute(t, "secrets", "set", "ANTHROPIC_API_KEY", "sk-ant-test")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored ANTHROPIC_API_KEY (1 secrets)")

	_, err = env.execute(t, "secrets", "set", "OPENAI_API_KEY", "sk-test")
	require.NoError(t, err)

	out, err = env.execute(t, "secrets", "list")
	require.NoError(t, err)
	assert.Equal(t, "ANTHROPIC_API_KEY\nOPENAI_API_KEY\n", out)

	t.Setenv(PasswordEnv, "wrong")
	_, err = env.execute(t, "secrets", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unlock secrets")
}

func TestUsageRequiresPrometheus(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.execute(t, "usage", "wf-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Prometheus URL")
}

func TestLoadDocumentsFrontmatter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hadley.md")
	require.NoError(t, os.WriteFile(path, []byte(authority), 0o600))
	plain := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(plain, []byte("# Notes on remoteness\n\nForeseeability limits damages."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.bin"), []byte{0, 1}, 0o600))

	docs, err := loadDocuments([]string{dir}, ingestDefaults{DocumentType: "secondary", Jurisdiction: "uk"})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	hadley := docs[0]
	assert.Equal(t, "Hadley v. Baxendale", hadley.Title)
	assert.Equal(t, "case-law", hadley.Metadata.DocumentType)
	assert.Equal(t, "uk", hadley.Metadata.Jurisdiction)
	assert.Equal(t, "(1854) 9 Exch 341", hadley.Metadata.Citation)
	assert.Equal(t, []string{"damages", "contract"}, hadley.Metadata.Tags)
	assert.Equal(t, time.Date(1854, 2, 23, 0, 0, 0, 0, time.UTC), hadley.Metadata.Date)
	assert.NotContains(t, hadley.Content, "document_type")
	assert.Equal(t, path, hadley.Source)

	notes := docs[1]
	assert.Equal(t, "Notes on remoteness", notes.Title)
	assert.Equal(t, "secondary", notes.Metadata.DocumentType)
}

func TestLoadCaseDefaultsID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smith-v-jones.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"title": "Smith v. Jones", "category": "personal-injury"}`), 0o600))

	c, err := loadCase(path)
	require.NoError(t, err)
	assert.Equal(t, "smith-v-jones", c.ID)
	assert.Equal(t, model.Category("personal-injury"), c.Category)
}

func TestVersion(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "legalflow dev")
}
