package notifier

import (
	"fmt"
	"strings"

	"github.com/soulscout/soulscout/internal/models"
)

// telegramMaxLength is the Bot API limit for a single message text.
const telegramMaxLength = 4096

// FormattedAlert is the rendered Telegram-HTML text, pre-split into
// sendable parts when it exceeds the message limit.
type FormattedAlert struct {
	Text  string
	Parts []string
}

// bandTitle maps a severity band to its display prefix.
func bandTitle(band string) string {
	switch band {
	case "heads_up":
		return "\U0001F4A1 Heads-up"
	case "actionable":
		return "⚡ Actionable"
	case "high_conviction":
		return "\U0001F525 High Conviction"
	default:
		return band
	}
}

// FormatAlert renders one alert into Telegram HTML: band title, reason
// bullets, exit plan, SOL path with estimated impact, and timestamp.
func FormatAlert(a models.Alert) FormattedAlert {
	var b strings.Builder

	fmt.Fprintf(&b, "%s BUY — %s @ $%.6f (C=%d)\n\n", bandTitle(a.Severity), a.Symbol, a.Price, a.Confidence)

	for _, line := range a.Lines {
		b.WriteString("• " + line + "\n")
	}
	b.WriteString("\n")

	if a.Plan != "" {
		b.WriteString("<b>Plan:</b> " + a.Plan + "\n")
	}
	if a.SolPath != "" {
		fmt.Fprintf(&b, "<b>Exit to SOL:</b> %s (est impact %.1f%%)\n", a.SolPath, a.EstImpactPct)
	}
	if a.Ts != "" {
		b.WriteString("\n<i>" + trimTimestamp(a.Ts) + "</i>")
	}

	text := b.String()
	return FormattedAlert{Text: text, Parts: splitMessage(text)}
}

// trimTimestamp drops the zone suffix from an RFC3339 timestamp for
// display.
func trimTimestamp(iso string) string {
	if len(iso) > 19 {
		return iso[:19]
	}
	return iso
}

// splitMessage breaks text at newline boundaries so every part fits the
// Telegram limit. Continuation parts are prefixed so the reader knows a
// message was cut.
func splitMessage(text string) []string {
	if len(text) <= telegramMaxLength {
		return []string{text}
	}

	var parts []string
	var current strings.Builder

	for _, line := range strings.SplitAfter(text, "\n") {
		if current.Len()+len(line) > telegramMaxLength && current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
			current.WriteString("...(continued)\n\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
