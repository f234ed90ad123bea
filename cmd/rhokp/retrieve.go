package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/rhokp"
	chiTransport "github.com/kailas-cloud/rhokp/internal/transport/chi"
)

type retrieveFlags struct {
	rows        int
	product     string
	version     string
	kind        string
	contextOnly bool
	order       string
	maxTokens   int
	json        bool
}

// options turns the flags into retrieve options; unset flags keep config defaults.
func (f *retrieveFlags) options(cmd *cobra.Command) ([]rhokp.RetrieveOption, error) {
	order, ok := rhokp.ParseOrder(f.order)
	if !ok {
		return nil, usagef("--order must be relevance or recency, got %q", f.order)
	}
	opts := []rhokp.RetrieveOption{rhokp.WithOrder(order)}
	if cmd.Flags().Changed("rows") {
		opts = append(opts, rhokp.WithRows(f.rows))
	}
	if cmd.Flags().Changed("max-tokens") {
		opts = append(opts, rhokp.WithMaxTokens(f.maxTokens))
	}
	if f.product != "" {
		opts = append(opts, rhokp.Product(f.product))
	}
	if f.version != "" {
		opts = append(opts, rhokp.Version(f.version))
	}
	if f.kind != "" {
		opts = append(opts, rhokp.DocumentKind(f.kind))
	}
	return opts, nil
}

func (f *retrieveFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.rows, "rows", "n", 0, "Documents to fetch (1-100, default from config)")
	cmd.Flags().StringVar(&f.product, "product", "", "Filter by product name")
	cmd.Flags().StringVar(&f.version, "version", "", "Filter by documentation version")
	cmd.Flags().StringVar(&f.kind, "kind", "", "Filter by document kind (Solution, Errata, ...)")
	cmd.Flags().StringVar(&f.order, "order", "relevance", "Context order: relevance or recency")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "Context token budget (0 = unlimited, default from config)")
}

func retrieveCmd(g *globalFlags) *cobra.Command {
	f := &retrieveFlags{}

	cmd := &cobra.Command{
		Use:   "retrieve <query...>",
		Short: "Search the portal and print the hits and LLM context",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.contextOnly && f.json {
				return usagef("--context-only and --json are mutually exclusive")
			}
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}

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

			res, err := client.Retrieve(cmd.Context(), strings.Join(args, " "), opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case f.contextOnly:
				_, err = fmt.Fprintln(out, res.Context)
				return err
			case f.json:
				return writeJSON(out, chiTransport.NewRetrieveResponse(res))
			default:
				printResult(out, res)
				return nil
			}
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&f.contextOnly, "context-only", false, "Print only the LLM context block")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the full result as JSON")
	return cmd
}

func printResult(w io.Writer, res *rhokp.RetrieveResult) {
	fmt.Fprintf(w, "Found %d document(s) for %q in %s\n", res.NumFound, res.Query, res.Elapsed.Round(time.Millisecond))
	for i, d := range res.Docs {
		fmt.Fprintf(w, "\n[%d] %s\n", i+1, d.Title)
		var meta []string
		for _, m := range []string{d.Kind, d.Product, d.Version} {
			if m != "" {
				meta = append(meta, m)
			}
		}
		if len(meta) > 0 {
			fmt.Fprintf(w, "    %s\n", strings.Join(meta, " | "))
		}
		if d.URL != "" {
			fmt.Fprintf(w, "    %s\n", d.URL)
		}
	}
	if res.Context != "" {
		fmt.Fprintf(w, "\n--- context (~%d tokens) ---\n%s\n", rhokp.EstimateTokens(res.Context), res.Context)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
