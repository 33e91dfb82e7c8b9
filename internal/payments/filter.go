package payments

import (
	"time"

	"github.com/casedesk/lawfirm-backend/pkg/models"
)

// FilterMode selects a ledger window.
type FilterMode string

const (
	FilterAll     FilterMode = "all"
	FilterToday   FilterMode = "today"
	FilterWeekly  FilterMode = "weekly"
	FilterMonthly FilterMode = "monthly"
	FilterCustom  FilterMode = "custom"
)

// ValidFilter reports whether m is a known filter mode.
func ValidFilter(m FilterMode) bool {
	switch m {
	case FilterAll, FilterToday, FilterWeekly, FilterMonthly, FilterCustom:
		return true
	}
	return false
}

// Filter returns the ledger entries whose payment date falls in the
// window. now and loc are injected so the windows are testable.
//
//	today   - same calendar date as now, in loc
//	weekly  - paymentDate >= now - 7 days  (rolling)
//	monthly - paymentDate >= now - 30 days (rolling, not calendar-month)
//	custom  - calendar date equals customDate ("2006-01-02"), in loc
func Filter(rows []models.Payment, mode FilterMode, customDate string, now time.Time, loc *time.Location) []models.Payment {
	if mode == FilterAll {
		return rows
	}

	keep := func(p models.Payment) bool { return true }
	switch mode {
	case FilterToday:
		day := now.In(loc).Format("2006-01-02")
		keep = func(p models.Payment) bool {
			return p.PaymentDate.In(loc).Format("2006-01-02") == day
		}
	case FilterWeekly:
		cut := now.Add(-7 * 24 * time.Hour)
		keep = func(p models.Payment) bool { return !p.PaymentDate.Before(cut) }
	case FilterMonthly:
		cut := now.Add(-30 * 24 * time.Hour)
		keep = func(p models.Payment) bool { return !p.PaymentDate.Before(cut) }
	case FilterCustom:
		keep = func(p models.Payment) bool {
			return p.PaymentDate.In(loc).Format("2006-01-02") == customDate
		}
	}

	out := make([]models.Payment, 0, len(rows))
	for _, p := range rows {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
