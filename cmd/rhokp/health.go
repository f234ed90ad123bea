package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// errUnhealthy makes `rhokp health` exit non-zero; the status is already printed.
var errUnhealthy = errors.New("portal is not healthy")

func healthCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the portal and report index size and breaker state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()

			client, err := a.newClient(nil)
			if err != nil {
				return err
			}
			defer client.Close()

			status, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, status); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "status:    %s\n", status.Status)
				fmt.Fprintf(out, "portal:    %s%s\n", status.BaseURL, status.Handler)
				fmt.Fprintf(out, "indexed:   %d documents, %d products\n", status.NumIndexed, status.ProductsAvailable)
				fmt.Fprintf(out, "breaker:   %s (%d failures)\n", status.Breaker, status.BreakerFailures)
				names := make([]string, 0, len(status.Checks))
				for name := range status.Checks {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					fmt.Fprintf(out, "check:     %s=%s\n", name, status.Checks[name])
				}
				if status.Error != "" {
					fmt.Fprintf(out, "error:     [%s] %s\n", status.ErrorKind, status.Error)
				}
			}
			if !status.OK() {
				return errUnhealthy
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the health status as JSON")
	return cmd
}
