// Package alert renders scored snapshots into human-readable alert text.
// Rendering is pure string assembly; delivery lives elsewhere.
package alert

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
)

// notAvailable renders any absent field. Missing data never aborts a
// message.
const notAvailable = "N/A"

var (
	// ErrNoToken indicates a snapshot without a token address.
	ErrNoToken = errors.New("alert: snapshot has no token address")

	// ErrUnknownType indicates an unsupported alert type.
	ErrUnknownType = errors.New("alert: unknown alert type")
)

// Formatter renders alert messages within a configured length cap.
type Formatter struct {
	maxLen int
}

// NewFormatter builds a Formatter from config.
func NewFormatter(cfg config.AlertConfig) *Formatter {
	return &Formatter{maxLen: cfg.MaxMessageLength}
}

// Format renders one alert. The only failure modes are a missing token
// address and an unknown alert type; absent data fields render as "N/A".
func (f *Formatter) Format(snap *domain.AggregatedSnapshot, score *domain.ScoreResult, typ domain.AlertType) (string, error) {
	if snap == nil || snap.Token.IsZero() {
		return "", ErrNoToken
	}
	if !typ.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}

	var b strings.Builder
	f.header(&b, snap, typ)
	f.market(&b, &snap.Merged)
	f.scores(&b, score)
	f.risks(&b, score)
	f.links(&b, snap.Token.Address)

	msg := b.String()
	if f.maxLen > 0 && utf8.RuneCountInString(msg) > f.maxLen {
		msg = truncate(msg, f.maxLen)
	}
	return msg, nil
}

func (f *Formatter) header(b *strings.Builder, snap *domain.AggregatedSnapshot, typ domain.AlertType) {
	symbol := snap.Token.Symbol
	if symbol == "" {
		symbol = shortAddress(snap.Token.Address)
	}

	switch typ {
	case domain.AlertNewDetection:
		fmt.Fprintf(b, "🚨 NEW TOKEN DETECTED: %s\n", symbol)
	case domain.AlertPriceMove:
		arrow := "📈"
		if snap.Merged.PriceChange24h != nil && *snap.Merged.PriceChange24h < 0 {
			arrow = "📉"
		}
		fmt.Fprintf(b, "%s PRICE MOVE: %s\n", arrow, symbol)
	case domain.AlertMomentumShift:
		fmt.Fprintf(b, "⚡ MOMENTUM SHIFT: %s\n", symbol)
	case domain.AlertLargeTransaction:
		fmt.Fprintf(b, "🐋 LARGE TRANSACTION: %s\n", symbol)
	}
	fmt.Fprintf(b, "`%s`\n\n", snap.Token.Address)
}

func (f *Formatter) market(b *strings.Builder, m *domain.Fields) {
	fmt.Fprintf(b, "💰 Price: %s\n", formatPrice(m.Price))
	fmt.Fprintf(b, "💧 Liquidity: %s\n", formatUSD(m.LiquidityUSD))
	fmt.Fprintf(b, "📊 Volume 24h: %s\n", formatUSD(m.Volume24h))
	fmt.Fprintf(b, "🏦 Market Cap: %s\n", formatUSD(m.MarketCapUSD))
	fmt.Fprintf(b, "%s 24h Change: %s\n", trendEmoji(m.PriceChange24h), formatPercent(m.PriceChange24h))
	fmt.Fprintf(b, "👥 Holders: %s\n\n", formatCount(m.HolderCount))
}

func (f *Formatter) scores(b *strings.Builder, score *domain.ScoreResult) {
	if score == nil {
		return
	}
	fmt.Fprintf(b, "%s Safety: %.0f/100\n", safetyEmoji(score.SafetyScore), score.SafetyScore)
	fmt.Fprintf(b, "%s Hype: %.0f/100\n", hypeEmoji(score.HypeScore), score.HypeScore)
	fmt.Fprintf(b, "%s Verdict: %s (confidence %.0f%%)\n\n",
		verdictEmoji(score.Verdict), score.Verdict, score.Confidence*100)
}

func (f *Formatter) risks(b *strings.Builder, score *domain.ScoreResult) {
	if score == nil || len(score.RiskFactors) == 0 {
		return
	}
	b.WriteString("⚠️ Risks:\n")
	for _, r := range score.RiskFactors {
		fmt.Fprintf(b, "  • %s\n", r)
	}
	b.WriteString("\n")
}

func (f *Formatter) links(b *strings.Builder, address string) {
	fmt.Fprintf(b, "🔗 [Birdeye](https://birdeye.so/token/%s?chain=solana)", address)
	fmt.Fprintf(b, " | [DexScreener](https://dexscreener.com/solana/%s)", address)
	fmt.Fprintf(b, " | [Solscan](https://solscan.io/token/%s)", address)
}

// formatUSD renders a dollar amount with K/M/B suffixes.
func formatUSD(v *float64) string {
	if v == nil {
		return notAvailable
	}
	n := *v
	switch {
	case math.Abs(n) >= 1e9:
		return fmt.Sprintf("$%.2fB", n/1e9)
	case math.Abs(n) >= 1e6:
		return fmt.Sprintf("$%.2fM", n/1e6)
	case math.Abs(n) >= 1e3:
		return fmt.Sprintf("$%.1fK", n/1e3)
	default:
		return fmt.Sprintf("$%.2f", n)
	}
}

// formatPrice keeps precision for sub-cent meme token prices.
func formatPrice(v *float64) string {
	if v == nil {
		return notAvailable
	}
	switch {
	case *v >= 1:
		return fmt.Sprintf("$%.2f", *v)
	case *v >= 0.01:
		return fmt.Sprintf("$%.4f", *v)
	default:
		return fmt.Sprintf("$%.8f", *v)
	}
}

// formatPercent renders a signed percentage.
func formatPercent(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return fmt.Sprintf("%+.1f%%", *v)
}

func formatCount(v *int64) string {
	if v == nil {
		return notAvailable
	}
	return fmt.Sprintf("%d", *v)
}

func safetyEmoji(score float64) string {
	switch {
	case score >= 70:
		return "🟢"
	case score > 40:
		return "🟡"
	default:
		return "🔴"
	}
}

func hypeEmoji(score float64) string {
	switch {
	case score >= 80:
		return "🔥"
	case score >= 65:
		return "🌡️"
	case score >= 40:
		return "📶"
	default:
		return "❄️"
	}
}

func verdictEmoji(v domain.Verdict) string {
	switch v {
	case domain.VerdictHot:
		return "🔥"
	case domain.VerdictCaution:
		return "⚠️"
	default:
		return "⛔"
	}
}

func trendEmoji(change *float64) string {
	switch {
	case change == nil:
		return "➖"
	case *change >= 20:
		return "🚀"
	case *change > 0:
		return "📈"
	case *change <= -20:
		return "🩸"
	case *change < 0:
		return "📉"
	default:
		return "➖"
	}
}

func shortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

// truncate cuts at a rune boundary and marks the cut.
func truncate(s string, maxRunes int) string {
	const marker = "…"
	runes := []rune(s)
	if maxRunes <= 1 {
		return marker
	}
	return string(runes[:maxRunes-1]) + marker
}
