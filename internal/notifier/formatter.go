package notifier

import (
	"fmt"
	"strings"
	"time"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"EpochVault/internal/calculator"
	"EpochVault/internal/epoch"
	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

const timeLayout = "2006-01-02 15:04 MST"

func amount(x math.Int) string {
	if x.IsNil() {
		return "0"
	}
	return units.FormatFixed(x, 4)
}

// FormatRollReport formats a committed roll into a Telegram message.
func FormatRollReport(r *model.RollReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>Epoch rolled</b> | %s\n\n", r.ClosedEpoch.UTC().Format(timeLayout)))
	if r.Dead {
		b.WriteString("Vault is dead, nothing was priced.\n")
	} else {
		b.WriteString(fmt.Sprintf("NAV: %s\n", units.FormatFixed(r.NAV, 6)))
	}
	b.WriteString(fmt.Sprintf("Portfolio: %s\n", amount(r.PortfolioValue)))
	if r.Payoff.IsPositive() {
		b.WriteString(fmt.Sprintf("Payoff reserved: %s\n", amount(r.Payoff)))
	}
	b.WriteString("\n💰 <b>Flows:</b>\n")
	b.WriteString(fmt.Sprintf("  Minted: %s shares\n", amount(r.MintedShares)))
	b.WriteString(fmt.Sprintf("  Exits priced: %s shares = %s\n", amount(r.SettledShares), amount(r.SettledValue)))
	b.WriteString("\n📦 <b>Ledger:</b>\n")
	b.WriteString(fmt.Sprintf("  Supply: %s\n", amount(r.TotalSupply)))
	b.WriteString(fmt.Sprintf("  Locked basis: %s\n", amount(r.LockedBasis)))
	b.WriteString(fmt.Sprintf("  Reserved exits: %s\n", amount(r.PendingWithdrawals)))
	b.WriteString(fmt.Sprintf("  Reserved payoffs: %s\n", amount(r.PendingPayoffs)))
	b.WriteString(fmt.Sprintf("\nNext epoch ends %s", r.NextEpoch.UTC().Format(timeLayout)))
	return b.String()
}

// FormatDeathAlert formats the alert sent on the roll that kills the vault.
func FormatDeathAlert(r *model.RollReport) string {
	var b strings.Builder
	b.WriteString("🚨 <b>VAULT DEAD</b>\n\n")
	if r.NAV.IsNil() || r.NAV.IsZero() {
		b.WriteString("NAV collapsed to zero.\n")
	} else {
		b.WriteString("Vault was killed by an admin.\n")
	}
	b.WriteString(fmt.Sprintf("Residual basis: %s\n", amount(r.LockedBasis)))
	b.WriteString("Deposits and shares can now only be rescued.\n")
	return b.String()
}

// FormatStatus formats the current ledger for a status query. left is the time until the epoch ends.
func FormatStatus(l model.Ledger, ep epoch.State, left time.Duration, nav math.Int, priced bool) string {
	var b strings.Builder
	b.WriteString("📦 <b>Vault status</b>\n\n")
	switch {
	case l.Dead:
		b.WriteString(fmt.Sprintf("State: dead (rescue price %s)\n", units.FormatFixed(l.RescuePrice, 6)))
	case l.Killed:
		b.WriteString("State: killed, dies at next roll\n")
	case l.Paused:
		b.WriteString("State: paused\n")
	default:
		b.WriteString("State: live\n")
	}
	if priced {
		b.WriteString(fmt.Sprintf("Last NAV: %s\n", units.FormatFixed(nav, 6)))
	} else {
		b.WriteString("Last NAV: none\n")
	}
	b.WriteString(fmt.Sprintf("Epoch ends: %s\n", ep.Current.UTC().Format(timeLayout)))
	if left > 0 {
		b.WriteString(fmt.Sprintf("Time left: %s\n", left.Truncate(time.Minute)))
	} else {
		b.WriteString("Time left: waiting for roll\n")
	}
	b.WriteString(fmt.Sprintf("Supply: %s\n", amount(l.TotalSupply)))
	b.WriteString(fmt.Sprintf("Locked basis: %s\n", amount(l.LockedBasis)))
	b.WriteString(fmt.Sprintf("Pending deposits: %s\n", amount(l.PendingDeposits)))
	b.WriteString(fmt.Sprintf("Reserved exits: %s\n", amount(l.PendingWithdrawals)))
	b.WriteString(fmt.Sprintf("Deposits: %s / %s\n", amount(l.TotalDeposit), amount(l.MaxDeposit)))
	return b.String()
}

// FormatRollHistory lists recent rolls, newest first.
func FormatRollHistory(rolls []model.RollReport) string {
	if len(rolls) == 0 {
		return "No rolls recorded yet."
	}
	var b strings.Builder
	b.WriteString("📈 <b>Recent rolls</b>\n\n")
	for _, r := range rolls {
		nav := units.FormatFixed(r.NAV, 6)
		if r.Dead {
			nav = "dead"
		}
		b.WriteString(fmt.Sprintf("%s  NAV %s  supply %s\n", r.ClosedEpoch.UTC().Format("2006-01-02 15:04"), nav, amount(r.TotalSupply)))
	}
	b.WriteString(navSummary(rolls))
	return b.String()
}

// navSummary reports range, return and drawdown over the live NAVs in rolls.
// Returns "" when fewer than two priced rolls are available.
func navSummary(rolls []model.RollReport) string {
	series := make([]decimal.Decimal, 0, len(rolls))
	for i := len(rolls) - 1; i >= 0; i-- {
		if rolls[i].Dead || rolls[i].NAV.IsNil() {
			continue
		}
		series = append(series, units.Decimal(rolls[i].NAV))
	}
	if len(series) < 2 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n📐 <b>Window:</b>\n")
	high, low, _ := calculator.Range(series, 0)
	b.WriteString(fmt.Sprintf("  High/Low: %s / %s\n", high.StringFixed(6), low.StringFixed(6)))
	if pos, err := calculator.Position(series[len(series)-1], high, low); err == nil {
		b.WriteString(fmt.Sprintf("  Position: %s%%\n", pos.Mul(decimal.NewFromInt(100)).StringFixed(1)))
	}
	if avg, err := calculator.SMA(series, len(series)); err == nil {
		b.WriteString(fmt.Sprintf("  Mean NAV: %s\n", avg.StringFixed(6)))
	}
	if ret, err := calculator.Return(series); err == nil {
		b.WriteString(fmt.Sprintf("  Return: %s%%\n", ret.Mul(decimal.NewFromInt(100)).StringFixed(2)))
	}
	b.WriteString(fmt.Sprintf("  Max drawdown: %s%%\n", calculator.MaxDrawdown(series).Mul(decimal.NewFromInt(100)).StringFixed(2)))
	return b.String()
}
