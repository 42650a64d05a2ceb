package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/CortexTrader/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	approvalStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F59E0B")).
			Padding(0, 2).
			Width(72)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(22)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	missStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// DisplayWelcomeBanner shows the welcome banner
func DisplayWelcomeBanner(w io.Writer) {
	banner := `
  ____           _          _____              _
 / ___|___  _ __| |_ _____ |_   _| __ __ _  __| | ___ _ __
| |   / _ \| '__| __/ _ \ \/ /| || '__/ _' |/ _' |/ _ \ '__|
| |__| (_) | |  | ||  __/>  < | || | | (_| | (_| |  __/ |
 \____\___/|_|   \__\___/_/\_\|_||_|  \__,_|\__,_|\___|_|
`
	welcomeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)
	taglineStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3B82F6")).
		Italic(true)

	fmt.Fprintln(w, welcomeStyle.Render(banner))
	fmt.Fprintln(w, taglineStyle.Render("🚀 Multi-agent trading analysis: analysts, debate, CIO, trader and risk desk"))
	fmt.Fprintln(w)
}

// RenderApprovalRequest formats the order summary shown before asking for approval.
func RenderApprovalRequest(req models.ApprovalRequest) string {
	rows := [][2]string{
		{"Order", req.OrderID},
		{"Ticker", req.Ticker},
		{"Side", string(req.Side)},
		{"Quantity", req.Quantity},
		{"Current price", req.CurrentPrice},
		{"Estimated value", req.EstimatedValue},
		{"Stop loss", req.StopLoss},
		{"Take profit", req.TakeProfit},
		{"Confidence", fmt.Sprintf("%.0f%%", req.Confidence*100)},
		{"Risk score", fmt.Sprintf("%.2f", req.RiskScore)},
		{"Overall score", fmt.Sprintf("%.2f (%s)", req.OverallScore, req.Recommendation)},
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("🔔 Order awaiting approval"))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(keyStyle.Render(r[0]) + r[1] + "\n")
	}
	if req.Reasoning != "" {
		b.WriteString("\n" + req.Reasoning)
	}
	return approvalStyle.Render(b.String())
}

func configured(ok bool) string {
	if ok {
		return okStyle.Render("✅ configured")
	}
	return missStyle.Render("❌ not configured")
}
