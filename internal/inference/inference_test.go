package inference

import (
	"errors"
	"reflect"
	"testing"
)

func TestRankPicksArgMax(t *testing.T) {
	result, err := Rank([]float32{0.1, 0.7, 0.15, 0.05}, Labels)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.Disease != "Cataract" {
		t.Fatalf("expected Cataract, got %s", result.Disease)
	}
	if result.Confidence != 0.7 {
		t.Fatalf("expected confidence 0.7, got %f", result.Confidence)
	}
	if len(result.Ranked) != RankedSize {
		t.Fatalf("expected %d ranked entries, got %d", RankedSize, len(result.Ranked))
	}
	for i := 1; i < len(result.Ranked); i++ {
		if result.Ranked[i].Confidence > result.Ranked[i-1].Confidence {
			t.Fatalf("ranked list not descending at %d", i)
		}
	}
}

func TestRankBreaksTiesByOrdinal(t *testing.T) {
	// Glaucoma and Cataract tie; Cataract comes first in the label set and
	// must win the higher rank.
	result, err := Rank([]float32{0.1, 0.4, 0.4, 0.1}, Labels)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.Disease != "Cataract" {
		t.Fatalf("expected Cataract to win the tie, got %s", result.Disease)
	}
	if result.Ranked[1].Label != "Glaucoma" {
		t.Fatalf("expected Glaucoma second, got %s", result.Ranked[1].Label)
	}
}

func TestRankIsDeterministic(t *testing.T) {
	probs := []float32{0.25, 0.25, 0.3, 0.2}
	first, err := Rank(probs, Labels)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Rank(probs, Labels)
		if err != nil {
			t.Fatalf("expected success, got error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("ranking differed between calls: %+v vs %+v", first, again)
		}
	}
}

func TestRankRejectsSizeMismatch(t *testing.T) {
	_, err := Rank([]float32{0.5, 0.5}, Labels)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference, got %v", err)
	}
}

func TestRankRejectsEmptyVector(t *testing.T) {
	_, err := Rank(nil, nil)
	if !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference, got %v", err)
	}
}

func TestRankShortLabelSet(t *testing.T) {
	result, err := Rank([]float32{0.4, 0.6}, []string{"a", "b"})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(result.Ranked) != 2 {
		t.Fatalf("expected 2 ranked entries, got %d", len(result.Ranked))
	}
	if result.Disease != "b" {
		t.Fatalf("expected b, got %s", result.Disease)
	}
}
