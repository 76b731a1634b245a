// Package report renders analysis records as markdown daily notes.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"MetalPulse/internal/domain/models"
	"MetalPulse/internal/fragility"
	"MetalPulse/pkg/util"
)

const noteType = "market-fragility-report"

var levelMarker = map[fragility.Level]string{
	fragility.LevelCritical: "🔴",
	fragility.LevelHigh:     "🟠",
	fragility.LevelModerate: "🟡",
	fragility.LevelLow:      "🟢",
}

func marker(l fragility.Level) string {
	if m, ok := levelMarker[l]; ok {
		return m
	}
	return "⚪"
}

// FileName is the note's file name for the record's date.
func FileName(rec *models.AnalysisRecord) string {
	return "fragility_report_" + util.FormatDate(rec.Date) + ".md"
}

// Markdown renders the daily note with front matter.
func Markdown(rec *models.AnalysisRecord) string {
	a := rec.Analysis
	r := a.GoldSilverRatio
	level := a.RatioFragility

	var b strings.Builder
	fmt.Fprintf(&b, "---\ndate: %s\ntype: %s\nfragility_level: %s\nfragility_score: %d\nrun_id: %s\ntags: [gold-silver-ratio, market-fragility, generated]\n---\n\n",
		util.FormatDate(rec.Date), noteType, level, a.FragilityScore, rec.RunID)

	fmt.Fprintf(&b, "# Gold/Silver Market Fragility Report %s\n\n", marker(level))
	fmt.Fprintf(&b, "**Generated**: %s  \n", rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Fragility level**: %s  \n", level)
	fmt.Fprintf(&b, "**Composite score**: %d/100\n\n---\n\n", a.FragilityScore)

	b.WriteString("## Key indicators\n\n### Gold/silver ratio\n")
	fmt.Fprintf(&b, "- **Current**: %.2f\n", r.CurrentValue)
	fmt.Fprintf(&b, "- **Z-score**: %s\n", optional(r.ZScore, "%.2f"))
	fmt.Fprintf(&b, "- **Percentile**: %s\n", optional(r.Percentile, "%.1f%%"))
	fmt.Fprintf(&b, "- **20-day MA**: %s\n", optional(r.MA20, "%.2f"))
	fmt.Fprintf(&b, "- **50-day MA**: %s\n", optional(r.MA50, "%.2f"))
	fmt.Fprintf(&b, "- **Deviation from MA20**: %s\n\n", optional(r.DeviationFromMA20, "%.2f%%"))
	fmt.Fprintf(&b, "**Interpretation**: %s\n\n", r.Interpretation)

	writeMomentum(&b, "Silver momentum", a.SilverMomentum, true)
	writeMomentum(&b, "Gold momentum", a.GoldMomentum, false)

	if len(a.MacroIndicators) > 0 {
		b.WriteString("### Macro indicators\n")
		names := make([]string, 0, len(a.MacroIndicators))
		for k := range a.MacroIndicators {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(&b, "- **%s**: %.2f\n", k, a.MacroIndicators[k])
		}
		b.WriteString("\n")
	}

	if len(a.CompositeSignals) > 0 {
		b.WriteString("---\n\n## 🚨 Detected signals\n\n")
		for _, s := range a.CompositeSignals {
			fmt.Fprintf(&b, "- %s **%s**: %s\n", marker(s.Severity), s.Type, s.Message)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n## 📊 What to watch\n\n")
	for _, line := range Recommendations(a) {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	fmt.Fprintf(&b, "\n---\n\n## Related notes\n\n- [[Gold-Silver Ratio %d]]\n- [[Market Fragility Dashboard]]\n",
		rec.Date.Year())
	return b.String()
}

func writeMomentum(b *strings.Builder, title string, m fragility.MomentumStats, full bool) {
	fmt.Fprintf(b, "### %s\n", title)
	fmt.Fprintf(b, "- **Price**: $%.2f\n", m.CurrentPrice)
	fmt.Fprintf(b, "- **1-day change**: %+.2f%%\n", m.Change1DPct)
	fmt.Fprintf(b, "- **5-day change**: %+.2f%%\n", m.Change5DPct)
	if full {
		fmt.Fprintf(b, "- **20-day change**: %+.2f%%\n", m.Change20DPct)
		fmt.Fprintf(b, "- **Annualized volatility**: %s\n", optional(m.Volatility20DAnnualized, "%.1f%%"))
	}
	b.WriteString("\n")
}

// Recommendations lists the watch items for a result. There is always at
// least the weekly positioning reminder.
func Recommendations(a fragility.AnalysisResult) []string {
	var out []string
	ratio := a.GoldSilverRatio.CurrentValue
	z := a.GoldSilverRatio.Z()

	if ratio > 80 {
		out = append(out,
			"Ratio holding above 80: historically reverts within 30-60 days",
			"Watch silver ETF flows for a reversal in outflows")
	}
	if ratio < 55 {
		out = append(out, "Low ratio territory looks overheated: correction risk")
	}
	if math.Abs(z) > 1.5 {
		out = append(out, fmt.Sprintf("Statistical outlier (Z-score: %.2f): mean reversion likely", z))
	}
	if a.SilverMomentum.IsExtremeWeekly {
		out = append(out, "Sharp weekly silver move: volatility regime rising")
	}
	out = append(out, "Check speculative positioning in the next CFTC report (Tuesday evening)")
	return out
}

// Summary is a one-line log rendering of a record.
func Summary(rec *models.AnalysisRecord) string {
	a := rec.Analysis
	return fmt.Sprintf("[%s] Ratio=%.2f | Level=%s | Score=%d/100 | Ag=%+.2f%%",
		rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		a.GoldSilverRatio.CurrentValue,
		a.RatioFragility,
		a.FragilityScore,
		a.SilverMomentum.Change1DPct)
}

// Writer saves notes under a directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer { return &Writer{dir: dir} }

// Save writes the note and returns its path.
func (w *Writer) Save(rec *models.AnalysisRecord) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(w.dir, FileName(rec))
	if err := os.WriteFile(path, []byte(Markdown(rec)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func optional(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}
