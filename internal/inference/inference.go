// Package inference wraps the classification model behind a small interface
// so the diagnosis flow can be exercised with a fake model in tests.
package inference

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/example/eye-diagnosis/internal/preprocess"
)

// Labels is the fixed, ordered label set the model was trained on. The
// model's probability vector is indexed by this ordering.
var Labels = []string{"Normal", "Cataract", "Glaucoma", "Retina Disease"}

// RankedSize is how many (label, confidence) pairs a result carries.
const RankedSize = 3

// ErrInference indicates the model is unavailable or the call failed.
var ErrInference = errors.New("inference failed")

// Prediction is one (label, confidence) pair.
type Prediction struct {
	Label      string
	Confidence float32
}

// Result is the canonical classification outcome: the arg-max label with its
// confidence plus the top ranked alternatives in descending order.
type Result struct {
	Disease      string
	Confidence   float32
	Ranked       []Prediction
	ModelVersion string
}

// Classifier is implemented by anything that can run the model forward pass.
type Classifier interface {
	Classify(ctx context.Context, t *preprocess.Tensor) (*Result, error)
	Ready(ctx context.Context) error
}

// Rank turns a probability vector into a Result. The sort is stable and the
// input order follows the label set, so equal confidences keep the labels'
// ordinal positions.
func Rank(probs []float32, labels []string) (*Result, error) {
	if len(probs) != len(labels) {
		return nil, fmt.Errorf("%w: model returned %d probabilities for %d labels", ErrInference, len(probs), len(labels))
	}
	if len(probs) == 0 {
		return nil, fmt.Errorf("%w: empty probability vector", ErrInference)
	}

	preds := make([]Prediction, len(probs))
	for i, p := range probs {
		preds[i] = Prediction{Label: labels[i], Confidence: p}
	}
	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Confidence > preds[j].Confidence
	})

	n := RankedSize
	if len(preds) < n {
		n = len(preds)
	}
	return &Result{
		Disease:    preds[0].Label,
		Confidence: preds[0].Confidence,
		Ranked:     preds[:n],
	}, nil
}
