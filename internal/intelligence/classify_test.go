package intelligence

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		score     float64
		wantLevel string
		wantRec   string
	}{
		{0, RiskLow, RecommendApprove},
		{19.9, RiskLow, RecommendApprove},
		{20, RiskMedium, RecommendReview},
		{79.99, RiskMedium, RecommendReview},
		{80, RiskHigh, RecommendReject},
		{100, RiskHigh, RecommendReject},
	}
	for _, tt := range tests {
		level, rec := Classify(tt.score, DefaultThresholds)
		if level != tt.wantLevel || rec != tt.wantRec {
			t.Fatalf("Classify(%v) = %s/%s, want %s/%s", tt.score, level, rec, tt.wantLevel, tt.wantRec)
		}
	}
}

func TestClassifyZeroThresholdsUseDefaults(t *testing.T) {
	level, rec := Classify(50, Thresholds{})
	if level != RiskMedium || rec != RecommendReview {
		t.Fatalf("expected defaults, got %s/%s", level, rec)
	}
}
