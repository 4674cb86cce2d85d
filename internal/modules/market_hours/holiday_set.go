package market_hours

// HolidayRuleSet defines the holidays of a market: recurring rules plus
// one-off dates.
type HolidayRuleSet struct {
	Rules []Rule
	AdHoc []Date
}

// HolidaySet returns every holiday in [start, end]. An empty rule set
// yields an empty set.
func (h HolidayRuleSet) HolidaySet(start, end Date) map[Date]struct{} {
	set := make(map[Date]struct{})
	for _, rule := range h.Rules {
		for _, d := range rule.DatesInRange(start, end) {
			set[d] = struct{}{}
		}
	}
	for _, d := range h.AdHoc {
		if d.Within(start, end) {
			set[d] = struct{}{}
		}
	}
	return set
}

// Holidays returns the holidays in [start, end] in ascending order.
func (h HolidayRuleSet) Holidays(start, end Date) []Date {
	set := h.HolidaySet(start, end)
	out := make([]Date, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sortDates(out)
	return out
}
