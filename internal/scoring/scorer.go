package scoring

import (
	"errors"
	"math"
)

// ErrModelUnavailable is returned when no fitted models were loaded.
var ErrModelUnavailable = errors.New("prediction model unavailable")

// Result is the output of a single scoring call.
type Result struct {
	PurchaseProbability float64 `json:"purchase_probability"`
	PredictedSpend      float64 `json:"predicted_spend"`
}

// PercentProbability is the purchase probability as a percentage rounded to 2 dp.
func (r Result) PercentProbability() float64 {
	return math.Round(r.PurchaseProbability*10000) / 100
}

// Predictor scores a feature vector.
type Predictor interface {
	Score(v FeatureVector) (Result, error)
}

// Available reports whether p can score. A nil predictor, or one whose
// Ready method reports false, is unavailable.
func Available(p Predictor) bool {
	if p == nil {
		return false
	}
	if r, ok := p.(interface{ Ready() bool }); ok {
		return r.Ready()
	}
	return true
}

// Scorer holds the fitted classifier and regressor. It is immutable after
// construction and safe for concurrent use. A nil *Scorer is valid and reports
// ErrModelUnavailable from every call.
type Scorer struct {
	forest    []tree
	regressor regressor
	threshold float64
}

type tree struct {
	left, right []int
	feature     []int
	threshold   []float64
	positive    []float64 // class-1 fraction per node, only meaningful at leaves
}

type regressor struct {
	mean, scale, coef [FeatureCount]float64
	intercept         float64
}

// New builds a Scorer from a validated artifact.
func New(a *Artifact) (*Scorer, error) {
	if a == nil {
		return nil, ErrModelUnavailable
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	s := &Scorer{threshold: a.PurchaseThreshold}
	for _, t := range a.Classifier.Trees {
		s.forest = append(s.forest, newTree(t))
	}
	copy(s.regressor.mean[:], a.Regressor.Mean)
	copy(s.regressor.scale[:], a.Regressor.Scale)
	copy(s.regressor.coef[:], a.Regressor.Coefficients)
	s.regressor.intercept = a.Regressor.Intercept
	return s, nil
}

// Load reads the artifact at path and builds a Scorer from it.
func Load(path string) (*Scorer, error) {
	a, err := ReadArtifactFile(path)
	if err != nil {
		return nil, err
	}
	return New(a)
}

// Ready reports whether the scorer can produce predictions.
func (s *Scorer) Ready() bool {
	return s != nil && len(s.forest) > 0
}

// PurchaseThreshold is the spend a "purchase" meant when the classifier was fit.
func (s *Scorer) PurchaseThreshold() float64 {
	if s == nil {
		return 0
	}
	return s.threshold
}

// Score returns the purchase probability and the predicted spend for v.
// The predicted spend is not clamped and may be negative.
func (s *Scorer) Score(v FeatureVector) (Result, error) {
	if !s.Ready() {
		return Result{}, ErrModelUnavailable
	}
	x := v.Values()
	return Result{
		PurchaseProbability: s.probability(x),
		PredictedSpend:      s.regressor.predict(x),
	}, nil
}

func (s *Scorer) probability(x [FeatureCount]float64) float64 {
	var sum float64
	for _, t := range s.forest {
		sum += t.predict(x)
	}
	return sum / float64(len(s.forest))
}

func newTree(a TreeArtifact) tree {
	t := tree{
		left:      a.ChildrenLeft,
		right:     a.ChildrenRight,
		feature:   a.Feature,
		threshold: a.Threshold,
		positive:  make([]float64, len(a.Value)),
	}
	for i, w := range a.Value {
		if a.ChildrenLeft[i] != -1 {
			continue
		}
		var total float64
		for _, c := range w {
			total += c
		}
		if total > 0 {
			t.positive[i] = w[1] / total
		}
	}
	return t
}

func (t tree) predict(x [FeatureCount]float64) float64 {
	node := 0
	for t.left[node] != -1 {
		if x[t.feature[node]] <= t.threshold[node] {
			node = t.left[node]
		} else {
			node = t.right[node]
		}
	}
	return t.positive[node]
}

func (r regressor) predict(x [FeatureCount]float64) float64 {
	y := r.intercept
	for i := range x {
		y += r.coef[i] * (x[i] - r.mean[i]) / r.scale[i]
	}
	return y
}
