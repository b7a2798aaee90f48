package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"legalflow/internal/kernel"
	"legalflow/pkg/config"
	"legalflow/pkg/logx"
	"legalflow/pkg/version"
)

// PasswordEnv unlocks the secrets file without a prompt.
const PasswordEnv = "LEGALFLOW_PASSWORD"

type rootOptions struct {
	configPath string
	secretsDir string
	format     string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:     "legalflow",
		Short:   "Legal case workflow pipeline",
		Version: version.Version,
		Long: `legalflow runs legal cases through intake validation, retrieval-augmented research
and document drafting, and maintains the legal authority index the research stage searches.

Examples:
  # Index a directory of authorities
  legalflow ingest ./authorities --type case-law --jurisdiction federal

  # Run a case and write the drafted documents
  legalflow run case.yaml --out ./out

  # Token usage of a finished workflow
  legalflow usage 3f2b...`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if opts.debug {
				logx.SetDebugConfig(true, false, "")
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", getEnvOrDefault("LEGALFLOW_CONFIG", ""), "config file (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&opts.secretsDir, "secrets-dir", getEnvOrDefault("LEGALFLOW_SECRETS_DIR", ".legalflow"), "directory holding the encrypted secrets file")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "output format (text, json)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newRunCmd(opts),
		newIngestCmd(opts),
		newQueryCmd(opts),
		newHealthCmd(opts),
		newUsageCmd(opts),
		newSecretsCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig unlocks the secrets file, if there is one, then loads the configuration.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if err := o.unlockSecrets(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) unlockSecrets() error {
	if !config.SecretsFileExists(o.secretsDir) {
		return nil
	}
	password := os.Getenv(PasswordEnv)
	if password == "" {
		var err error
		if password, err = promptSecret("Secrets password: "); err != nil {
			return err
		}
	}
	values, err := config.DecryptSecretsFile(o.secretsDir, password)
	if err != nil {
		return fmt.Errorf("failed to unlock secrets: %w", err)
	}
	config.SetSecrets(values)
	return nil
}

// startKernel loads the configuration and starts a kernel.
func (o *rootOptions) startKernel(ctx context.Context, kopts ...kernel.Option) (*kernel.Kernel, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	k, err := kernel.NewKernel(ctx, cfg, kopts...)
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	if err := k.Start(); err != nil {
		_ = k.Stop()
		return nil, err //nolint:wrapcheck // already descriptive
	}
	return k, nil
}

func (o *rootOptions) jsonOutput() bool { return strings.EqualFold(o.format, "json") }

// promptSecret reads a line from the terminal without echo.
func promptSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // stdin descriptor fits in int
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s is not set and stdin is not a terminal", PasswordEnv)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	s := string(b)
	for i := range b {
		b[i] = 0
	}
	return s, nil
}
