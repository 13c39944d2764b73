package scoring

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Artifact is the on-disk form of the fitted models, exported by the offline
// training job. Tree arrays mirror the node layout of the training library:
// children_left[i] == -1 marks a leaf, value[i] holds per-class sample weights.
//
// From a scikit-learn fit, each entry of Classifier.Trees comes from one
// estimator's tree_ (children_left, children_right, feature, threshold and
// value[:, 0, :]). Regressor.Mean and Regressor.Scale are StandardScaler's
// mean_ and scale_; Coefficients and Intercept are LinearRegression's coef_
// and intercept_. Features must list the columns in FeatureNames order.
type Artifact struct {
	Features          []string           `json:"features"`
	PurchaseThreshold float64            `json:"purchase_threshold"`
	Classifier        ClassifierArtifact `json:"classifier"`
	Regressor         RegressorArtifact  `json:"regressor"`
}

// ClassifierArtifact holds the forest of decision trees.
type ClassifierArtifact struct {
	Trees []TreeArtifact `json:"trees"`
}

// TreeArtifact is one fitted decision tree.
type TreeArtifact struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// RegressorArtifact holds the linear model and the scaler it was fit behind.
type RegressorArtifact struct {
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
	Coefficients []float64 `json:"coef"`
	Intercept    float64   `json:"intercept"`
}

// ReadArtifact decodes and validates an artifact from r.
func ReadArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// ReadArtifactFile opens path and decodes the artifact in it.
func ReadArtifactFile(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model artifact: %w", err)
	}
	defer f.Close()
	return ReadArtifact(f)
}

// Validate checks the artifact is consistent with the encoder and internally well formed.
func (a *Artifact) Validate() error {
	if len(a.Features) != FeatureCount {
		return fmt.Errorf("model artifact declares %d features, want %d", len(a.Features), FeatureCount)
	}
	for i, name := range a.Features {
		if name != FeatureNames[i] {
			return fmt.Errorf("model artifact feature %d is %q, want %q", i, name, FeatureNames[i])
		}
	}

	if len(a.Classifier.Trees) == 0 {
		return fmt.Errorf("model artifact has no classifier trees")
	}
	for i, t := range a.Classifier.Trees {
		if err := t.validate(); err != nil {
			return fmt.Errorf("classifier tree %d: %w", i, err)
		}
	}

	r := a.Regressor
	if len(r.Mean) != FeatureCount || len(r.Scale) != FeatureCount || len(r.Coefficients) != FeatureCount {
		return fmt.Errorf("regressor expects %d mean/scale/coef values, got %d/%d/%d",
			FeatureCount, len(r.Mean), len(r.Scale), len(r.Coefficients))
	}
	for i, s := range r.Scale {
		if s == 0 {
			return fmt.Errorf("regressor scale for %s is zero", FeatureNames[i])
		}
	}
	return nil
}

func (t TreeArtifact) validate() error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays have mismatched lengths")
	}
	for i := 0; i < n; i++ {
		left, right := t.ChildrenLeft[i], t.ChildrenRight[i]
		if left == -1 {
			if len(t.Value[i]) < 2 {
				return fmt.Errorf("leaf %d has %d class weights, want 2", i, len(t.Value[i]))
			}
			continue
		}
		// Children always follow their parent in the exported layout, which also rules out cycles.
		if left <= i || left >= n || right <= i || right >= n {
			return fmt.Errorf("node %d has out of range children %d/%d", i, left, right)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= FeatureCount {
			return fmt.Errorf("node %d splits on unknown feature %d", i, t.Feature[i])
		}
	}
	return nil
}
