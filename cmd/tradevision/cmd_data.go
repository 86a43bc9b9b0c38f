package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"TradeVision/internal/calculator"
	"TradeVision/internal/model"
)

var loadJSON bool

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load and validate the CSV, then report row statistics",
	Args:  cobra.NoArgs,
	RunE:  runLoad,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print deterministic statistics over the dataset",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func init() {
	loadCmd.Flags().BoolVar(&loadJSON, "json", false, "print the parsed points as JSON")
}

func runLoad(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	ds := a.collector.Reload(cmd.Context())
	if ds.Error != "" {
		return fmt.Errorf("load %s: %s", ds.Source, ds.Error)
	}
	out := cmd.OutOrStdout()
	if loadJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ds.Points)
	}
	fmt.Fprint(out, render(loadReport(ds)))
	return nil
}

func loadReport(ds *model.Dataset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", ds.Symbol)
	fmt.Fprintf(&b, "Source: `%s`\n\n", ds.Source)
	fmt.Fprintf(&b, "- rows read: %d\n- rows kept: %d\n- level warnings: %d\n",
		ds.Stats.RowsRead, ds.Stats.RowsKept, ds.Stats.LevelWarnings)
	reasons := make([]string, 0, len(ds.Stats.Dropped))
	for r := range ds.Stats.Dropped {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(&b, "- dropped (%s): %d\n", r, ds.Stats.Dropped[model.DropReason(r)])
	}
	return b.String()
}

func runSummary(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	ds := a.collector.Reload(cmd.Context())
	if ds.Empty() {
		return fmt.Errorf("no %s data loaded from %s", ds.Symbol, ds.Source)
	}
	fmt.Fprint(cmd.OutOrStdout(), render(summaryMarkdown(calculator.Summarize(ds.Symbol, ds.Points))))
	return nil
}

func summaryMarkdown(s model.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s summary\n\n", s.Symbol)
	fmt.Fprintf(&b, "%s to %s, %d bars\n\n", s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"), s.Points)
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Last close | %.2f |\n", s.LastClose)
	fmt.Fprintf(&b, "| Highest high | %.2f (%s) |\n", s.HighestHigh, s.HighestDate)
	fmt.Fprintf(&b, "| Lowest low | %.2f (%s) |\n", s.LowestLow, s.LowestDate)
	fmt.Fprintf(&b, "| Largest move | %+.2f (%s) |\n", s.MaxMove, s.MaxMoveDate)
	fmt.Fprintf(&b, "| Average volume | %.0f |\n", s.AvgVolume)
	fmt.Fprintf(&b, "| SMA20 | %.2f |\n", s.SMA20)
	fmt.Fprintf(&b, "| RSI14 | %.1f |\n", s.RSI14)
	fmt.Fprintf(&b, "| Recent range | %.2f - %.2f |\n", s.RecentLow, s.RecentHigh)
	fmt.Fprintf(&b, "| Signals | LONG %d, SHORT %d, None %d, unlabeled %d |\n",
		s.LongCount, s.ShortCount, s.NoneCount, s.UnknownCount)
	return b.String()
}
