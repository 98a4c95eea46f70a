package guards

import (
	"strings"
	"time"
)

// Ctx is the session context for a symbol's asset class.
type Ctx struct {
	Name              string `json:"name"`
	AssetClass        string `json:"assetClass"`
	InPreferredWindow bool   `json:"inPreferredWindow"`
}

// SessionContext classifies the symbol's asset class and whether now falls in
// its preferred trading window (UTC). Crypto trades around the clock; metals
// and FX prefer the London/New York overlap hours; FX additionally avoids the
// weekend gap and the rollover hour.
func SessionContext(symbol string, now time.Time) Ctx {
	utc := now.UTC()
	class := assetClass(symbol)
	ctx := Ctx{AssetClass: class}

	switch class {
	case "crypto":
		ctx.Name = "crypto-24x7"
		ctx.InPreferredWindow = true
		return ctx
	case "metal":
		ctx.Name = "metals-liquid-hours"
		h := utc.Hour()
		ctx.InPreferredWindow = weekdayOpen(utc) && h >= 7 && h < 20
		return ctx
	default:
		h := utc.Hour()
		ctx.Name = sessionName(h)
		// prefer London through the New York afternoon, skip rollover
		ctx.InPreferredWindow = weekdayOpen(utc) && h >= 7 && h < 21
		return ctx
	}
}

func sessionName(hourUTC int) string {
	switch {
	case hourUTC >= 22 || hourUTC < 7:
		return "asia"
	case hourUTC < 12:
		return "london"
	case hourUTC < 16:
		return "london-newyork-overlap"
	default:
		return "newyork"
	}
}

// MarketOpen reports whether the symbol's market accepts orders at all.
// Crypto always does; FX and metals close over the weekend gap.
func MarketOpen(symbol string, now time.Time) bool {
	if assetClass(symbol) == "crypto" {
		return true
	}
	return weekdayOpen(now.UTC())
}

// weekdayOpen is false from Friday 21:00 UTC to Sunday 22:00 UTC.
func weekdayOpen(utc time.Time) bool {
	switch utc.Weekday() {
	case time.Saturday:
		return false
	case time.Friday:
		return utc.Hour() < 21
	case time.Sunday:
		return utc.Hour() >= 22
	default:
		return true
	}
}

func assetClass(symbol string) string {
	s := strings.ToUpper(symbol)
	switch {
	case strings.HasPrefix(s, "XAU"), strings.HasPrefix(s, "XAG"),
		strings.HasPrefix(s, "XPT"), strings.HasPrefix(s, "XPD"):
		return "metal"
	case strings.HasPrefix(s, "BTC"), strings.HasPrefix(s, "ETH"),
		strings.HasPrefix(s, "LTC"), strings.HasPrefix(s, "XRP"),
		strings.HasPrefix(s, "SOL"):
		return "crypto"
	default:
		return "fx"
	}
}
