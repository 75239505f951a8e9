package services

// FeePolicy computes the fee withheld from a payout amount.
type FeePolicy interface {
	Fees(amountMinor int64) int64
}

// FlatPlusPercentageFee charges a fixed amount plus a share of the payout,
// expressed in basis points. The fee never exceeds the payout itself.
type FlatPlusPercentageFee struct {
	FlatMinor  int64
	PercentBps int64
}

func (p FlatPlusPercentageFee) Fees(amountMinor int64) int64 {
	fee := p.FlatMinor + amountMinor*p.PercentBps/10000
	if fee < 0 {
		return 0
	}
	if fee > amountMinor {
		return amountMinor
	}
	return fee
}
