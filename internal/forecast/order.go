package forecast

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ordercast/ordercast/internal/domain"
)

const (
	// minDowDataDays is how many distinct history days the day-of-week
	// algorithm needs before its projection is meaningful.
	minDowDataDays = 14

	// minDowReliability is the learned-reliability floor below which
	// the weekday pattern is not used at all.
	minDowReliability = 0.3
)

// OrderInput collects everything the order calculation needs for one product.
type OrderInput struct {
	Rank         domain.Rank
	Config       domain.RankConfig
	Stats        ProductStats
	Params       *domain.ForecastParams
	CurrentStock float64
	LeadTimeDays int
	ForecastDays int
	LotSize      int
	UnitCost     decimal.Decimal
	OrderDate    time.Time
}

// ForecastByDow projects demand day by day over the horizon using the
// weekday seasonality indices. The returned total is exactly the sum of
// the daily components.
func ForecastByDow(stats ProductStats, start time.Time, days int) (float64, []float64) {
	daily := make([]float64, 0, days)
	total := 0.0
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		q := stats.BaseRate * stats.Seasonality[d.Weekday()]
		daily = append(daily, q)
		total += q
	}

	return total, daily
}

// BuildOrder runs the order calculation for one product.
func BuildOrder(in OrderInput) OrderPlan {
	plan := OrderPlan{}

	reliability := 1.0
	if in.Params != nil {
		reliability = in.Params.DowReliability
	}

	// 1. Algorithm selection: the weekday-weighted projection needs the
	// rank to ask for it, enough history, and a trusted pattern.
	flat := in.Stats.AvgDailyRate * float64(in.ForecastDays)
	useDow := in.Config.Algorithm == domain.AlgorithmDowWeighted &&
		in.Stats.DataPoints >= minDowDataDays &&
		reliability >= minDowReliability

	// 2. Forecast demand over the horizon, blending by reliability when
	// the weekday projection is in play.
	if useDow {
		dowTotal, _ := ForecastByDow(in.Stats, in.OrderDate, in.ForecastDays)
		plan.Algorithm = domain.AlgorithmDowWeighted
		plan.ForecastQty = reliability*dowTotal + (1-reliability)*flat
	} else {
		plan.Algorithm = domain.AlgorithmSimple
		plan.ForecastQty = flat
	}

	// 3. Learned bias correction, only once enough cycles accumulated.
	if in.Params.Active() {
		plan.ForecastQty *= in.Params.BiasCorrection
		plan.BiasApplied = true
	}

	// 4. Demand expected to arrive during the supplier lead time.
	plan.LeadTimeDemand = in.Stats.AvgDailyRate * float64(in.LeadTimeDays)

	// 5. Safety stock, scaled by the learned multiplier once active.
	plan.RawSafetyStock = CalcSafetyStock(in.Config, in.Stats, in.LeadTimeDays)
	plan.SafetyStock = plan.RawSafetyStock
	if in.Params.Active() {
		plan.SafetyStock = plan.RawSafetyStock * in.Params.SafetyMultiplier
		plan.SafetyApplied = true
	}

	// 6. Gross and net demand against what is already on the shelf.
	plan.GrossDemand = plan.ForecastQty + plan.LeadTimeDemand + plan.SafetyStock
	plan.NetDemand = math.Max(0, plan.GrossDemand-in.CurrentStock)

	// 7. Round up to whole units, then to the supplier lot.
	order := int(math.Ceil(plan.NetDemand))
	if in.LotSize > 1 && order%in.LotSize != 0 {
		order = (order/in.LotSize + 1) * in.LotSize
	}

	// 8. Anti-trickle policy: orders below the rank's minimum lot are
	// dropped rather than rounded up.
	if order > 0 && order < in.Config.MinOrderLot {
		order = 0
		plan.Suppressed = true
	}
	plan.RecommendedOrder = order

	// 9. Order amount in whole currency units.
	plan.OrderAmount = in.UnitCost.Mul(decimal.NewFromInt(int64(order))).Round(0)

	plan.Breakdown = renderBreakdown(plan, in)

	return plan
}

// renderBreakdown formats the calculation trace from the final plan
// fields so the text always matches the numbers.
func renderBreakdown(plan OrderPlan, in OrderInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "forecast %.2f (%s", plan.ForecastQty, plan.Algorithm)
	if plan.BiasApplied {
		fmt.Fprintf(&b, ", bias x%.2f", in.Params.BiasCorrection)
	}
	b.WriteString(")")

	fmt.Fprintf(&b, " + lead %.2f + safety %.2f", plan.LeadTimeDemand, plan.SafetyStock)
	if plan.SafetyApplied {
		fmt.Fprintf(&b, " (x%.2f)", in.Params.SafetyMultiplier)
	}

	fmt.Fprintf(&b, " - stock %.2f = net %.2f -> order %d", in.CurrentStock, plan.NetDemand, plan.RecommendedOrder)
	if in.LotSize > 1 {
		fmt.Fprintf(&b, " (lot %d)", in.LotSize)
	}
	if plan.Suppressed {
		fmt.Fprintf(&b, " (below min lot %d, dropped)", in.Config.MinOrderLot)
	}

	return b.String()
}
