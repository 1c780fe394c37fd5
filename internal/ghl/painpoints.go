package ghl

import "strings"

// painPointExpansions turns terse DM answers into the full labels the sales
// team expects on the CRM record.
var painPointExpansions = []struct {
	markers  []string
	expanded string
}{
	{[]string{"timing", "too early", "too late", "top", "bottom"}, "Timing the market"},
	{[]string{"sell", "exit", "take profit", "profits"}, "Knowing when to take profits"},
	{[]string{"what to buy", "which coin", "picking", "projects", "altcoin"}, "Picking the right projects"},
	{[]string{"risk", "position siz", "leverage", "liquidat"}, "Managing risk and position sizing"},
	{[]string{"fomo", "emotion", "panic", "stress", "sleep"}, "Controlling emotions under volatility"},
	{[]string{"time", "busy", "job", "full-time"}, "Not enough time to follow the market"},
}

// ExpandPainPoints maps a raw pain-point answer to the expanded CRM labels it
// matches, joined with "; ". Answers matching nothing pass through unchanged.
func ExpandPainPoints(raw string) string {
	lower := strings.ToLower(raw)
	var labels []string
	for _, e := range painPointExpansions {
		for _, m := range e.markers {
			if strings.Contains(lower, m) {
				labels = append(labels, e.expanded)
				break
			}
		}
	}
	if len(labels) == 0 {
		return raw
	}
	return strings.Join(labels, "; ")
}
