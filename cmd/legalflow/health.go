package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check agents, the retrieval index and the workflow store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := opts.startKernel(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = k.Stop() }()

			health := k.Health(cmd.Context())
			w := cmd.OutOrStdout()
			if opts.jsonOutput() {
				if err := json.NewEncoder(w).Encode(health); err != nil {
					return err //nolint:wrapcheck // stdout
				}
			} else {
				names := make([]string, 0, len(health))
				for name := range health {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					status := "ok"
					if !health[name] {
						status = "unhealthy"
					}
					fmt.Fprintf(w, "%-16s %s\n", name, status)
				}
			}

			var down []string
			for name, ok := range health {
				if !ok {
					down = append(down, name)
				}
			}
			if len(down) > 0 {
				sort.Strings(down)
				return fmt.Errorf("unhealthy components: %v", down)
			}
			return nil
		},
	}
}
