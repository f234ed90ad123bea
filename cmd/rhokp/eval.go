package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/rhokp"
	"github.com/kailas-cloud/rhokp/internal/domain"
	evaluateuc "github.com/kailas-cloud/rhokp/internal/usecase/evaluate"
)

func evalCmd(g *globalFlags) *cobra.Command {
	var queriesPath string
	var rows int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score retrieval with Precision@k and MRR over a labelled query set",
		Long: `Run every query of a JSONL file against the portal and score the hits by
document kind. Each line looks like:

  {"query": "install OpenShift on bare metal", "expected_kinds": ["guide"], "product": "..."}

Precision@k is the share of the top k hits whose kind is expected; MRR is the
mean of 1/rank of the first expected hit. Failed queries score zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rows < rhokp.MinRows || rows > rhokp.MaxRows {
				return usagef("--rows must be in [%d, %d], got %d", rhokp.MinRows, rhokp.MaxRows, rows)
			}
			queries, err := evaluateuc.LoadQueriesFile(queriesPath)
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

			rep, err := evaluateuc.New(evalRetriever(client), rows, a.logger).Run(cmd.Context(), queries)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), newReportJSON(rep))
			}
			printReport(cmd.OutOrStdout(), a.cfg.OKP.BaseURL, rep)
			return nil
		},
	}

	cmd.Flags().StringVarP(&queriesPath, "queries", "q", "eval/queries.jsonl", "Path to the JSONL query set")
	cmd.Flags().IntVarP(&rows, "rows", "n", 5, "Documents retrieved per query (k)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func evalRetriever(c *rhokp.Client) evaluateuc.Retriever {
	return evaluateuc.RetrieverFunc(func(ctx context.Context, q evaluateuc.Query, rows int) (*domain.RetrieveResult, error) {
		opts := []rhokp.RetrieveOption{rhokp.WithRows(rows)}
		if q.Product != "" {
			opts = append(opts, rhokp.Product(q.Product))
		}
		return c.Retrieve(ctx, q.Query, opts...)
	})
}

func printReport(w io.Writer, portal string, rep evaluateuc.Report) {
	line := strings.Repeat("-", 72)
	fmt.Fprintf(w, "Evaluating %d queries against %s (rows=%d)\n%s\n", len(rep.Results), portal, rep.Rows, line)
	for i, r := range rep.Results {
		q := truncate(r.Query.Query, 55)
		if r.Err != nil {
			fmt.Fprintf(w, "  [%2d] ERROR %s: %v\n", i+1, q, r.Err)
			continue
		}
		status := "MISS"
		if r.Hit() {
			status = "OK"
		}
		fmt.Fprintf(w, "  [%2d] %-4s  P@%d=%.2f  RR=%.2f  found=%5d  %s\n",
			i+1, status, rep.Rows, r.Precision, r.RR, r.NumFound, q)
	}
	fmt.Fprintf(w, "%s\n  Precision@%d: %.3f\n  MRR:          %.3f\n  Queries:      %d (%d errors)\n",
		line, rep.Rows, rep.Precision, rep.MRR, len(rep.Results), rep.Errors)
}

type resultJSON struct {
	Query     string   `json:"query"`
	Precision float64  `json:"precision"`
	RR        float64  `json:"reciprocal_rank"`
	NumFound  int      `json:"num_found"`
	Kinds     []string `json:"kinds"`
	Error     string   `json:"error,omitempty"`
}

type reportJSON struct {
	Rows      int          `json:"rows"`
	Precision float64      `json:"precision"`
	MRR       float64      `json:"mrr"`
	Errors    int          `json:"errors"`
	Results   []resultJSON `json:"results"`
}

func newReportJSON(rep evaluateuc.Report) reportJSON {
	out := reportJSON{Rows: rep.Rows, Precision: rep.Precision, MRR: rep.MRR, Errors: rep.Errors}
	for _, r := range rep.Results {
		rj := resultJSON{Query: r.Query.Query, Precision: r.Precision, RR: r.RR, NumFound: r.NumFound, Kinds: r.Kinds}
		if r.Err != nil {
			rj.Error = r.Err.Error()
		}
		out.Results = append(out.Results, rj)
	}
	return out
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
