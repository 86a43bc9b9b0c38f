package notifier

import (
	"fmt"
	"html"
	"strings"

	"TradeVision/internal/model"
)

// FormatForecast formats a trend forecast into a Telegram message.
func FormatForecast(symbol string, fc *model.TrendForecast) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔮 <b>%s trend forecast</b>\n\n", html.EscapeString(symbol)))
	b.WriteString(html.EscapeString(fc.TrendPrediction))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Confidence: <b>%s</b> %s\n", html.EscapeString(fc.ConfidenceLevel), confidenceBar(fc.ConfidenceValue())))
	return b.String()
}

// confidenceBar renders a 0-100 value as ten blocks.
func confidenceBar(v float64) string {
	n := int(v/10 + 0.5)
	return strings.Repeat("▰", n) + strings.Repeat("▱", 10-n)
}

// FormatAnswer formats an analyst answer, quoting the question.
func FormatAnswer(question string, ans *model.Answer) string {
	return fmt.Sprintf("❓ <i>%s</i>\n\n%s", html.EscapeString(question), html.EscapeString(ans.Answer))
}

// FormatSummary formats the deterministic dataset statistics.
func FormatSummary(s model.Summary) string {
	if s.Points == 0 {
		return fmt.Sprintf("📭 No %s data loaded.", html.EscapeString(s.Symbol))
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>%s summary</b> | %s ~ %s\n\n",
		html.EscapeString(s.Symbol), s.Start.Format("2006-01-02"), s.End.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Last close: %.2f\n", s.LastClose))
	b.WriteString(fmt.Sprintf("Highest high: %.2f (%s)\n", s.HighestHigh, html.EscapeString(s.HighestDate)))
	b.WriteString(fmt.Sprintf("Lowest low: %.2f (%s)\n", s.LowestLow, html.EscapeString(s.LowestDate)))
	b.WriteString(fmt.Sprintf("Largest move: %+.2f (%s)\n", s.MaxMove, html.EscapeString(s.MaxMoveDate)))
	b.WriteString(fmt.Sprintf("Avg volume: %.0f\n", s.AvgVolume))
	b.WriteString(fmt.Sprintf("SMA20: %.2f | RSI14: %.0f\n", s.SMA20, s.RSI14))
	b.WriteString(fmt.Sprintf("Recent range: %.2f ~ %.2f (position %.0f%%)\n", s.RecentLow, s.RecentHigh, s.Position*100))
	b.WriteString(fmt.Sprintf("Signals: LONG %d | SHORT %d | None %d", s.LongCount, s.ShortCount, s.NoneCount))
	if s.UnknownCount > 0 {
		b.WriteString(fmt.Sprintf(" | unlabeled %d", s.UnknownCount))
	}
	b.WriteString("\n")
	return b.String()
}

// FormatLoad formats the outcome of a dataset reload.
func FormatLoad(ds *model.Dataset) string {
	if ds.Error != "" {
		return fmt.Sprintf("❌ <b>Reload failed</b> (%s)\n%s", html.EscapeString(ds.Source), html.EscapeString(ds.Error))
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("✅ <b>%s reloaded</b> | %s\n\n", html.EscapeString(ds.Symbol), ds.LoadedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Rows kept: %d / %d\n", ds.Stats.RowsKept, ds.Stats.RowsRead))
	if n := ds.Stats.DroppedTotal(); n > 0 {
		b.WriteString(fmt.Sprintf("Dropped: %d\n", n))
	}
	if ds.Stats.LevelWarnings > 0 {
		b.WriteString(fmt.Sprintf("Level warnings: %d\n", ds.Stats.LevelWarnings))
	}
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "Available commands:\n" +
		"• /ask &lt;question&gt;\n" +
		"• /forecast\n" +
		"• /summary\n" +
		"• /reload"
}
