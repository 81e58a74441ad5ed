package cli

import (
	"fmt"
	"strings"

	"github.com/mfuentes/cuentaclara/internal/engine"
	"github.com/mfuentes/cuentaclara/internal/model"
)

// FormatPesos renders an int64 peso amount with Chilean thousands separators.
func FormatPesos(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	sign := ""
	if negative {
		sign = "-"
	}
	return "$" + sign + b.String()
}

// RenderReport renders a full audit result for the terminal.
func RenderReport(result *engine.Result) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Forensic copayment audit"))
	b.WriteString("\n")
	b.WriteString(renderBalance(result.Balance))
	b.WriteString("\n")

	if len(result.Findings) > 0 {
		b.WriteString(BoldStyle.Render("Findings"))
		b.WriteString("\n")
		for _, f := range result.Findings {
			b.WriteString(renderFinding(f))
			b.WriteString("\n")
		}
	}

	if len(result.Alerts) > 0 {
		b.WriteString(BoldStyle.Render("Alerts"))
		b.WriteString("\n")
		for _, alert := range result.Alerts {
			b.WriteString(ErrorStyle.Render("  ! " + alert))
			b.WriteString("\n")
		}
	}

	b.WriteString(SubtleStyle.Render(fmt.Sprintf(
		"findings in=%d out=%d, reconstructed=%d, unresolved=%d, rules fired=%d",
		result.Stats.FindingsIn, result.Stats.FindingsOut,
		result.Stats.Reconstructed, result.Stats.Unresolved, result.Stats.RulesFired)))
	b.WriteString("\n")

	return b.String()
}

func renderBalance(b model.Balance) string {
	rows := []string{
		fmt.Sprintf("%-28s %14s", "Confirmed improper (A)", FormatPesos(b.Confirmed)),
		fmt.Sprintf("%-28s %14s", "Controversial (B)", FormatPesos(b.Controversial)),
		fmt.Sprintf("%-28s %14s", "Opaque residual (Z)", FormatPesos(b.Opaque)),
		fmt.Sprintf("%-28s %14s", "Legitimate (OK)", FormatPesos(b.Legitimate)),
		strings.Repeat("-", 43),
		fmt.Sprintf("%-28s %14s", "Declared total", FormatPesos(b.Total)),
		fmt.Sprintf("%-28s %13.1f%%", "Opacity", b.OpacityPercent()),
		fmt.Sprintf("%-28s %14s", "State", b.StateLabel()),
	}
	return BoxStyle.Render(strings.Join(rows, "\n"))
}

func renderFinding(f *model.Finding) string {
	style := WarningStyle
	switch f.Category {
	case model.CategoryConfirmed:
		style = ErrorStyle
	case model.CategoryInformational:
		style = SubtleStyle
	case model.CategoryControversial, model.CategoryOpaque:
		style = WarningStyle
	}
	line := fmt.Sprintf("  [%s] %s  %s", categoryShort(f.Category), FormatPesos(f.Amount), f.Label)
	return style.Render(line)
}

func categoryShort(c model.FindingCategory) string {
	switch c {
	case model.CategoryConfirmed:
		return "A"
	case model.CategoryControversial:
		return "B"
	case model.CategoryOpaque:
		return "Z"
	case model.CategoryInformational:
		return "i"
	default:
		return "?"
	}
}
