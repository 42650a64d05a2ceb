// Package display renders run results for the terminal and as markdown reports.
package display

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/CortexTrader/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2).
			Width(80)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	buyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	sellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	holdStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)

	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
)

// ResultsDisplay renders a run for the terminal.
type ResultsDisplay struct {
	w       io.Writer
	details bool
}

// NewResultsDisplay writes to w. With details set, every intermediate section is shown.
func NewResultsDisplay(w io.Writer, details bool) *ResultsDisplay {
	return &ResultsDisplay{w: w, details: details}
}

// Show prints the run. Only the result is needed; state sections are optional.
func (d *ResultsDisplay) Show(run *models.RunDetails) {
	fmt.Fprintln(d.w, d.Render(run))
}

func (d *ResultsDisplay) Render(run *models.RunDetails) string {
	res := run.Result
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("📊 %s  %s  status: %s",
		res.Ticker, res.FinishedAt.Format("2006-01-02 15:04"), res.Status)))
	b.WriteString("\n")

	d.decision(&b, res.Decision)
	if d.details && run.State != nil {
		d.analysis(&b, run.State.Analysis)
		d.debate(&b, run.State.Debate)
	}
	d.trade(&b, res.TradeExecution)
	d.risk(&b, res.RiskAssessment)
	d.stages(&b, run)

	if len(res.Errors) > 0 {
		b.WriteString(sectionStyle.Render("⚠️  Errors"))
		b.WriteString("\n")
		for _, e := range res.Errors {
			b.WriteString(errorStyle.Render("  • " + e))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (d *ResultsDisplay) decision(b *strings.Builder, dec models.Decision) {
	b.WriteString(sectionStyle.Render("🎯 Decision"))
	b.WriteString("\n")
	fmt.Fprintf(b, "  %s %s %s\n", ActionEmoji(dec.Action), actionStyle(dec.Action).Render(string(dec.Action)),
		labelStyle.Render(fmt.Sprintf("confidence %.0f%%, size %s", dec.Confidence*100, dec.PositionSize)))
	field(b, "Horizon", dec.TimeHorizon)
	field(b, "Entry", dec.EntryStrategy)
	field(b, "Exit", dec.ExitStrategy)
	field(b, "Risk", dec.RiskManagement)
	if len(dec.KeyCatalysts) > 0 {
		field(b, "Catalysts", strings.Join(dec.KeyCatalysts, "; "))
	}
	field(b, "Reasoning", dec.Reasoning)
	field(b, "Dissent", dec.DissentingView)
}

func (d *ResultsDisplay) analysis(b *strings.Builder, a *models.AnalystFindings) {
	if a == nil {
		return
	}
	b.WriteString(sectionStyle.Render("📈 Analysts"))
	b.WriteString("\n")
	for _, kind := range models.AnalystKinds {
		f, ok := a.Findings[kind]
		if !ok {
			continue
		}
		fmt.Fprintf(b, "  %-13s %-5s %3.0f%%  %s\n", kind, f.Signal, f.Confidence*100, firstLine(f.Reasoning))
	}
	c := a.Consolidated
	fmt.Fprintf(b, "  %-13s %-5s %3.0f%%  %s\n", "consolidated", c.Signal, c.Confidence*100, c.AnalystAgreement)
}

func (d *ResultsDisplay) debate(b *strings.Builder, db *models.DebateState) {
	if db == nil {
		return
	}
	b.WriteString(sectionStyle.Render(fmt.Sprintf("⚖️  Research debate (%d/%d rounds)", db.Round, db.MaxRounds)))
	b.WriteString("\n")
	for _, arg := range db.History {
		emoji := "🐂"
		if arg.Side == models.SideBearish {
			emoji = "🐻"
		}
		fmt.Fprintf(b, "  %s r%d %s %3.0f%%  %s\n", emoji, arg.Round, arg.RecommendedAction, arg.Confidence*100, firstLine(arg.Thesis))
	}
	if r := db.Report; r != nil {
		field(b, "Thesis", r.InvestmentThesis)
		fmt.Fprintf(b, "  %s %s (%s conviction)\n", labelStyle.Render("Research view:"), r.RecommendedAction, r.PositionConviction)
	}
}

func (d *ResultsDisplay) trade(b *strings.Builder, t *models.TradeState) {
	if t == nil {
		return
	}
	b.WriteString(sectionStyle.Render(fmt.Sprintf("💼 Trade (%d/%d iterations)", t.Iteration, t.MaxIterations)))
	b.WriteString("\n")
	p := t.Proposal
	fmt.Fprintf(b, "  %s %s %.1f%% of capital, stop %.1f%%, target %.1f%%\n",
		p.Action, p.OrderType, p.QuantityFraction*100, p.StopLossPct, p.TakeProfitPct)
	if s, ok := t.LastScore(); ok {
		fmt.Fprintf(b, "  %s %.2f (%s)\n", labelStyle.Render("Score:"), s.Overall, s.Recommendation)
	}
	if pi := t.Portfolio; pi != nil && pi.Clamped {
		field(b, "Portfolio", pi.AdjustmentReason)
	}
	if e := t.Execution; e != nil {
		fmt.Fprintf(b, "  %s %s %s %s @ $%s = $%s [%s]\n", labelStyle.Render("Order:"), e.OrderID, e.Side,
			e.Quantity.String(), e.CurrentPrice.StringFixed(2), e.EstimatedValue.StringFixed(2), e.Status)
		field(b, "Approval", e.ApprovalReason)
		field(b, "Feedback", e.Feedback)
	}
}

func (d *ResultsDisplay) risk(b *strings.Builder, r *models.RiskState) {
	if r == nil {
		return
	}
	rec := r.Recommendation
	b.WriteString(sectionStyle.Render("🛡️  Risk"))
	b.WriteString("\n")
	fmt.Fprintf(b, "  %s risk %s, approved size %.0f%%, final fraction %.1f%%\n",
		rec.Action, rec.RiskLevel, rec.ApprovedPositionSize*100, r.Adjustments.ApprovedFraction*100)
	if d.details {
		for _, p := range models.Perspectives {
			if a, ok := r.Assessments[p]; ok {
				fmt.Fprintf(b, "  %-8s %-16s adj %.2f  %s\n", p, a.Recommendation, a.PositionAdjustment, firstLine(a.Reasoning))
			}
		}
	}
	field(b, "Consensus", rec.ConsensusView)
}

func (d *ResultsDisplay) stages(b *strings.Builder, run *models.RunDetails) {
	if !d.details {
		return
	}
	b.WriteString(sectionStyle.Render("⏱️  Stages"))
	b.WriteString("\n")
	for _, s := range models.Stages {
		line := fmt.Sprintf("  %-12s %-8s", s, run.Result.Stages[s])
		if dur, ok := run.Durations[s]; ok {
			line += " " + dur.Round(time.Millisecond).String()
		}
		b.WriteString(line + "\n")
	}
}

func field(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "  %s %s\n", labelStyle.Render(label+":"), value)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > 80 {
		line = string(r[:77]) + "..."
	}
	return line
}

func actionStyle(a models.Action) lipgloss.Style {
	switch a.Direction() {
	case models.SignalBuy:
		return buyStyle
	case models.SignalSell:
		return sellStyle
	}
	return holdStyle
}

func ActionEmoji(a models.Action) string {
	switch a {
	case models.ActionStrongBuy:
		return "🟢🟢"
	case models.ActionBuy:
		return "🟢"
	case models.ActionSell:
		return "🔴"
	case models.ActionStrongSell:
		return "🔴🔴"
	}
	return "🟡"
}

// Markdown renders the full run as a markdown report.
func Markdown(run *models.RunDetails) string {
	res := run.Result
	dec := res.Decision
	var b strings.Builder

	fmt.Fprintf(&b, "# %s analysis\n\n", res.Ticker)
	fmt.Fprintf(&b, "- Started: %s\n- Finished: %s\n- Status: `%s`\n\n",
		res.StartedAt.Format("2006-01-02 15:04:05"), res.FinishedAt.Format("2006-01-02 15:04:05"), res.Status)

	b.WriteString("## Decision\n\n")
	fmt.Fprintf(&b, "**%s** %s, confidence %.2f, position size %s\n\n", dec.Action, ActionEmoji(dec.Action), dec.Confidence, dec.PositionSize)
	mdField(&b, "Time horizon", dec.TimeHorizon)
	mdField(&b, "Entry strategy", dec.EntryStrategy)
	mdField(&b, "Exit strategy", dec.ExitStrategy)
	mdField(&b, "Risk management", dec.RiskManagement)
	mdList(&b, "Key catalysts", dec.KeyCatalysts)
	mdField(&b, "Reasoning", dec.Reasoning)
	mdField(&b, "Dissenting view", dec.DissentingView)

	if st := run.State; st != nil {
		if snap := st.Snapshot; snap != nil {
			b.WriteString("## Market data\n\n")
			fmt.Fprintf(&b, "- Current price: $%.2f\n- Price points: %d\n- News articles: %d\n",
				snap.CurrentPrice, len(snap.PriceHistory), len(snap.NewsArticles))
			keys := make([]string, 0, len(snap.FinancialReports))
			for k := range snap.FinancialReports {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "- %s: %v\n", k, snap.FinancialReports[k])
			}
			b.WriteString("\n")
		}
		if a := st.Analysis; a != nil {
			b.WriteString("## Analysts\n\n| Analyst | Signal | Confidence | Reasoning |\n|---|---|---|---|\n")
			for _, kind := range models.AnalystKinds {
				if f, ok := a.Findings[kind]; ok {
					fmt.Fprintf(&b, "| %s | %s | %.2f | %s |\n", kind, f.Signal, f.Confidence, cell(f.Reasoning))
				}
			}
			c := a.Consolidated
			fmt.Fprintf(&b, "| consolidated | %s | %.2f | %s |\n\n", c.Signal, c.Confidence, cell(c.Reasoning))
		}
		if db := st.Debate; db != nil {
			fmt.Fprintf(&b, "## Research debate\n\nRounds: %d of %d, consensus: %t\n\n", db.Round, db.MaxRounds, db.ConsensusReached)
			for _, arg := range db.History {
				fmt.Fprintf(&b, "### Round %d, %s (%s, %.2f)\n\n%s\n\n", arg.Round, arg.Side, arg.RecommendedAction, arg.Confidence, arg.Thesis)
				mdList(&b, "Supporting points", arg.SupportingPoints)
			}
			if r := db.Report; r != nil {
				mdField(&b, "Investment thesis", r.InvestmentThesis)
				mdField(&b, "Risk/reward", r.RiskRewardAssessment)
				mdList(&b, "Key risks", r.KeyRisks)
			}
		}
	}

	if t := res.TradeExecution; t != nil {
		p := t.Proposal
		b.WriteString("## Trade\n\n")
		fmt.Fprintf(&b, "- Proposal: %s %s, %.2f%% of capital\n- Stop loss: %.1f%%\n- Take profit: %.1f%%\n- Iterations: %d of %d\n",
			p.Action, p.OrderType, p.QuantityFraction*100, p.StopLossPct, p.TakeProfitPct, t.Iteration, t.MaxIterations)
		for _, s := range t.Scores {
			fmt.Fprintf(&b, "- Score %d: %.2f (%s)\n", s.Iteration, s.Overall, s.Recommendation)
		}
		if e := t.Execution; e != nil {
			fmt.Fprintf(&b, "- Order `%s`: %s %s @ $%s, status %s\n", e.OrderID, e.Side, e.Quantity.String(), e.CurrentPrice.StringFixed(2), e.Status)
		}
		b.WriteString("\n")
	}

	if r := res.RiskAssessment; r != nil {
		rec := r.Recommendation
		b.WriteString("## Risk assessment\n\n")
		fmt.Fprintf(&b, "- Action: %s\n- Risk level: %s\n- Approved position size: %.2f\n- Final fraction: %.4f\n\n",
			rec.Action, rec.RiskLevel, rec.ApprovedPositionSize, r.Adjustments.ApprovedFraction)
		mdList(&b, "Monitoring", rec.MonitoringRequirements)
		mdList(&b, "Key risks", rec.KeyRisks)
	}

	if len(res.Errors) > 0 {
		mdList(&b, "Errors", res.Errors)
	}
	return b.String()
}

func mdField(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "**%s:** %s\n\n", label, value)
}

func mdList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n\n", label)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func cell(s string) string {
	return strings.ReplaceAll(firstLine(s), "|", "\\|")
}

// DisplayError shows formatted error messages
func DisplayError(w io.Writer, err error, context string) {
	fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("❌ Error in %s: %v", context, err)))
}

func DisplayWarning(w io.Writer, message string) {
	fmt.Fprintln(w, warningStyle.Render("⚠️  Warning: "+message))
}

func DisplaySuccess(w io.Writer, message string) {
	fmt.Fprintln(w, successStyle.Render("✅ "+message))
}

func DisplayInfo(w io.Writer, message string) {
	fmt.Fprintln(w, infoStyle.Render("ℹ️  "+message))
}
