package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the analyst a question about the dataset",
	Long: `Sends the question together with the raw CSV to the language model.

Example:
  tradevision ask "What was the highest price TSLA reached in this dataset?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Predict the future trend of the dataset",
	Args:  cobra.NoArgs,
	RunE:  runForecast,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireAnalyst(); err != nil {
		return err
	}

	ds := a.collector.Reload(ctx)
	question := strings.Join(args, " ")
	ans, err := a.analyst.Ask(ctx, question, ds.Raw)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), render(fmt.Sprintf("**Q:** %s\n\n%s\n", question, ans.Answer)))
	return nil
}

func runForecast(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireAnalyst(); err != nil {
		return err
	}

	ds := a.collector.Reload(ctx)
	fc, err := a.analyst.Forecast(ctx, ds.Raw)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), render(fmt.Sprintf("# %s trend forecast\n\n%s\n\n**Confidence:** %s\n",
		ds.Symbol, fc.TrendPrediction, fc.ConfidenceLevel)))
	return nil
}

// render formats markdown for the terminal, or returns it unchanged with --plain.
func render(md string) string {
	if plain {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
