package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp"
	"github.com/kailas-cloud/rhokp/internal/domain"
	answeruc "github.com/kailas-cloud/rhokp/internal/usecase/answer"
)

func askCmd(g *globalFlags) *cobra.Command {
	f := &retrieveFlags{}
	var provider, model string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Answer a question with an LLM grounded on retrieved portal excerpts",
		Long: `Retrieve portal excerpts for the question, then ask the configured LLM
(llm.provider: openai, anthropic or gemini) to answer using only those
excerpts, citing them by [n]. OpenAI-compatible servers such as Llama Stack
work through llm.base_url (LLM_BASE_URL).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}

			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()
			if provider != "" {
				a.cfg.LLM.Provider = provider
			}
			if model != "" {
				a.cfg.LLM.Model = model
			}

			ctx := cmd.Context()
			gen, err := a.newGenerator(ctx, nil)
			if err != nil {
				return err
			}
			client, err := a.newClient(nil)
			if err != nil {
				return err
			}
			defer client.Close()

			svc := answeruc.New(clientRetriever(client, opts), gen, a.logger)
			a.logger.Debug("Asking", zap.String("provider", gen.Name()))
			ans, err := svc.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, ans)
			}
			fmt.Fprintln(out, ans.Text)
			if len(ans.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, s := range ans.Sources {
					fmt.Fprintf(out, "  [%d] %s %s\n", s.N, s.Title, s.URL)
				}
			}
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider override: openai, anthropic, gemini")
	cmd.Flags().StringVar(&model, "model", "", "LLM model override")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer and sources as JSON")
	return cmd
}

// clientRetriever binds a client and fixed options to the answer use case.
func clientRetriever(c *rhokp.Client, opts []rhokp.RetrieveOption) answeruc.Retriever {
	return answeruc.RetrieverFunc(func(ctx context.Context, q string) (*domain.RetrieveResult, error) {
		return c.Retrieve(ctx, q, opts...)
	})
}
