package payment

import "github.com/qerenny/nowmeow/internal/period"

// Plan is a static catalog entry. Prices are in minor currency units.
type Plan struct {
	Period     period.Period
	Label      string
	PriceMinor int64
}

// Catalog is defined at process start and never mutated.
var Catalog = []Plan{
	{Period: period.Month1, Label: "🐾 1 Месяц - 149 РУБ", PriceMinor: 149 * 100},
	{Period: period.Month3, Label: "🛡️ 3 Месяца - 390 РУБ", PriceMinor: 390 * 100},
	{Period: period.Month6, Label: "💻 6 Месяцев - 749 РУБ", PriceMinor: 749 * 100},
	{Period: period.Year1, Label: "🎉 1 Год - 1290 РУБ", PriceMinor: 1290 * 100},
}

// TrialLabel names the one-off free period in the subscription menu.
const TrialLabel = "🐾🎈 3 Дня (пробная)"

const Currency = "RUB"

// PlanByPeriod looks up a paid catalog entry.
func PlanByPeriod(p period.Period) (Plan, bool) {
	for _, plan := range Catalog {
		if plan.Period == p {
			return plan, true
		}
	}
	return Plan{}, false
}
