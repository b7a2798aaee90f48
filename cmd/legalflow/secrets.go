package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"legalflow/pkg/config"
)

func newSecretsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted secrets file",
	}
	cmd.AddCommand(newSecretsSetCmd(opts), newSecretsListCmd(opts))
	return cmd
}

func newSecretsSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set NAME [VALUE]",
		Short: "Store a secret such as ANTHROPIC_API_KEY",
		Long:  "Set stores a secret in the encrypted secrets file, prompting for the value when it is omitted.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := secretsPassword(opts.secretsDir)
			if err != nil {
				return err
			}
			values := map[string]string{}
			if config.SecretsFileExists(opts.secretsDir) {
				if values, err = config.DecryptSecretsFile(opts.secretsDir, password); err != nil {
					return fmt.Errorf("failed to unlock secrets: %w", err)
				}
			}

			name := args[0]
			var value string
			if len(args) == 2 {
				value = args[1]
			} else if value, err = promptSecret(name + ": "); err != nil {
				return err
			}
			if value == "" {
				return errors.New("secret value must not be empty")
			}
			values[name] = value

			if err := config.EncryptSecretsFile(opts.secretsDir, password, values); err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (%d secrets)\n", name, len(values))
			return nil
		},
	}
}

func newSecretsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the names stored in the secrets file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !config.SecretsFileExists(opts.secretsDir) {
				return fmt.Errorf("no secrets file in %s", opts.secretsDir)
			}
			password, err := secretsPassword(opts.secretsDir)
			if err != nil {
				return err
			}
			values, err := config.DecryptSecretsFile(opts.secretsDir, password)
			if err != nil {
				return fmt.Errorf("failed to unlock secrets: %w", err)
			}
			names := make([]string, 0, len(values))
			for name := range values {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// secretsPassword reads the password from the environment, or prompts for it. A new file asks
// for confirmation.
func secretsPassword(dir string) (string, error) {
	if p := os.Getenv(PasswordEnv); p != "" {
		return p, nil
	}
	password, err := promptSecret("Secrets password: ")
	if err != nil {
		return "", err
	}
	if config.SecretsFileExists(dir) {
		return password, nil
	}
	confirm, err := promptSecret("Confirm password: ")
	if err != nil {
		return "", err
	}
	if confirm != password {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}
