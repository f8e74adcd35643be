package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog("job", 50) {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Forget("job") // should not panic
}

func TestProgressSampler_PercentBuckets(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog("a", 0) {
		t.Error("0% should log")
	}
	if s.ShouldLog("a", 3) {
		t.Error("3% should not log (same bucket)")
	}
	if !s.ShouldLog("a", 5) {
		t.Error("5% should log (new bucket)")
	}
	if s.ShouldLog("a", 7) {
		t.Error("7% should not log (same bucket)")
	}
	if !s.ShouldLog("a", 100) {
		t.Error("100% should log")
	}
	if s.ShouldLog("a", 105) {
		t.Error("105% should not log again (same as 100% bucket)")
	}
}

func TestProgressSampler_JobsAreIndependent(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog("a", 50)

	if !s.ShouldLog("b", 10) {
		t.Error("first event of another job should log")
	}
	if s.ShouldLog("a", 55) {
		t.Error("job a should stay in its own bucket")
	}
}

func TestProgressSampler_UnknownTotalLogsOnce(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog("a", -1) {
		t.Error("first unknown-total event should log")
	}
	if s.ShouldLog("a", -1) {
		t.Error("repeated unknown-total events should not log")
	}
}

func TestProgressSampler_Forget(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog("a", 50)
	s.Forget("a")
	if !s.ShouldLog("a", 50) {
		t.Error("should log again after Forget")
	}
}
