package services

import "time"

// RefundPolicy decides how much of a held creditCost returns to the
// learner on cancellation. It is a pure function of (now, startsAt,
// creditCost): full refund at or beyond FullRefundWindow before the
// session, LatePercent of the cost after that. Refunds never increase as
// the session gets closer.
type RefundPolicy struct {
	FullRefundWindow time.Duration
	LatePercent      int
}

func (p RefundPolicy) RefundAmount(now, startsAt time.Time, creditCost int64) int64 {
	if creditCost <= 0 {
		return 0
	}
	pct := p.LatePercent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if !now.Add(p.FullRefundWindow).After(startsAt) {
		return creditCost
	}
	return creditCost * int64(pct) / 100
}
