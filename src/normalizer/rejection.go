package normalizer

import (
	"portfolioexecutor/src/model"
)

// Rejection kinds.
const (
	KindValidation  = "validation"
	KindDivergence  = "divergence"
	KindPrecision   = "precision"
	KindMinNotional = "min_notional"
	KindUnsupported = "unsupported"
	KindMetadata    = "metadata"
)

const (
	ReasonDivergence       = "price divergence too high"
	ReasonMinNotional      = "order below min notional"
	ReasonInvalidPrice     = "invalid price after rounding"
	ReasonInvalidQuantity  = "invalid quantity after rounding"
	ReasonUnsupportedToken = "unsupported token for pair"
)

// Rejection is a business-rule outcome, not a failure of the normalizer itself.
// Reason is what ends up in the execution record's cancellation reason.
type Rejection struct {
	Kind    string
	Reason  string
	Details []string
}

func (r *Rejection) Error() string {
	return r.Kind + ": " + r.Reason
}

func (r *Rejection) Plan() *model.PlanRejection {
	if r == nil {
		return nil
	}
	return &model.PlanRejection{Kind: r.Kind, Reason: r.Reason, Details: r.Details}
}

func reject(kind, reason string, details ...string) *Rejection {
	return &Rejection{Kind: kind, Reason: reason, Details: details}
}
