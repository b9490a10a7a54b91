package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummarizeOddCount(t *testing.T) {
	s := Summarize([]float64{3, 1, 2})
	if s.Count != 3 {
		t.Fatalf("expected count 3, got %d", s.Count)
	}
	if !almostEqual(s.Median, 2) {
		t.Fatalf("expected median 2, got %f", s.Median)
	}
	if !almostEqual(s.Mean, 2) {
		t.Fatalf("expected mean 2, got %f", s.Mean)
	}
}

func TestSummarizeEvenMedian(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4})
	if !almostEqual(s.Median, 2.5) {
		t.Fatalf("expected median 2.5, got %f", s.Median)
	}
}

func TestSummarizeDoesNotMutateInput(t *testing.T) {
	values := []float64{5, 1, 3}
	Summarize(values)
	if values[0] != 5 || values[1] != 1 || values[2] != 3 {
		t.Fatalf("input slice was reordered: %v", values)
	}
}

func TestMADScaling(t *testing.T) {
	// deviations from median 3 are {2,1,0,1,2}, their median is 1
	s := Summarize([]float64{1, 2, 3, 4, 5})
	if !almostEqual(s.MAD, 1.4826) {
		t.Fatalf("expected MAD 1.4826, got %f", s.MAD)
	}
}

func TestZMADZeroMAD(t *testing.T) {
	s := Summarize([]float64{7, 7, 7, 7})
	if _, ok := ZMAD(100, s); ok {
		t.Fatal("expected no z-score when MAD is zero")
	}
}

func TestZMADSign(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4, 5})
	z, ok := ZMAD(10, s)
	if !ok {
		t.Fatal("expected a z-score")
	}
	if z <= 0 {
		t.Fatalf("expected positive z for value above median, got %f", z)
	}
	zLow, _ := ZMAD(-10, s)
	if zLow >= 0 {
		t.Fatalf("expected negative z for value below median, got %f", zLow)
	}
}

func TestIQRFenceCatchesWhatMADBoundCannot(t *testing.T) {
	// Four identical values force MAD to zero. The IQR fence still
	// exists and must catch the extreme point.
	values := []float64{10, 10, 10, 10, 1000}
	s := Summarize(values)
	if _, ok := ZMAD(1000, s); ok {
		t.Fatal("expected MAD to be zero for this cohort")
	}
	fence := s.IQRFence(3)
	if !fence.Outside(1000) {
		t.Fatalf("expected 1000 outside fence [%f, %f]", fence.Lower, fence.Upper)
	}
	if fence.Outside(10) {
		t.Fatal("expected 10 inside fence")
	}
}

func TestQuantileInterpolation(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4})
	if !almostEqual(s.Q1, 1.75) {
		t.Fatalf("expected Q1 1.75, got %f", s.Q1)
	}
	if !almostEqual(s.Q3, 3.25) {
		t.Fatalf("expected Q3 3.25, got %f", s.Q3)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.Count != 0 || s.Median != 0 || s.MAD != 0 {
		t.Fatalf("expected zero summary, got %+v", s)
	}
}

func TestSortedKeysDeterministic(t *testing.T) {
	m := map[string]int{"b": 1, "a": 2, "c": 3}
	keys := SortedKeys(m)
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("unexpected key order: %v", keys)
	}
}
