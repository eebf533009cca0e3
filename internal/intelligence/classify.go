package intelligence

const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"

	RecommendApprove = "APPROVE"
	RecommendReview  = "REVIEW"
	RecommendReject  = "REJECT"
)

// Thresholds are the routing boundaries between the three verdicts.
type Thresholds struct {
	ApproveBelow float64
	RejectFrom   float64
}

// DefaultThresholds routes 0-19 to approve, 20-79 to review, 80-100 to reject.
var DefaultThresholds = Thresholds{ApproveBelow: 20, RejectFrom: 80}

// Classify maps a composite score to a risk level and recommendation.
func Classify(score float64, t Thresholds) (riskLevel, recommendation string) {
	if t.ApproveBelow <= 0 && t.RejectFrom <= 0 {
		t = DefaultThresholds
	}
	switch {
	case score < t.ApproveBelow:
		return RiskLow, RecommendApprove
	case score < t.RejectFrom:
		return RiskMedium, RecommendReview
	default:
		return RiskHigh, RecommendReject
	}
}
