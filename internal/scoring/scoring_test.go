package scoring

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) *Scorer {
	t.Helper()
	s, err := Load("testdata/model.json")
	require.NoError(t, err)
	require.True(t, s.Ready())
	return s
}

func TestEncode_InvertsOnlyBenefits(t *testing.T) {
	v := Encode(Attributes{
		Age:                   40,
		DaysSinceLastPurchase: 10,
		Employed:              true,
		OnBenefits:            true,
	})
	assert.Equal(t, [FeatureCount]float64{40, 10, 1, 0, 0, 0, 0, 0}, v.Values())

	v = Encode(Attributes{Driver: true, VDUUser: true, Varifocal: true, HighPrescription: true})
	assert.Equal(t, [FeatureCount]float64{0, 0, 0, 1, 1, 1, 1, 1}, v.Values())
}

func TestEncode_PassesThroughOutOfRangeValues(t *testing.T) {
	v := Encode(Attributes{Age: -3, DaysSinceLastPurchase: -100})
	assert.Equal(t, -3.0, v.Age)
	assert.Equal(t, -100.0, v.DaysSinceLastPurchase)
}

func TestScorer_Score(t *testing.T) {
	s := loadFixture(t)

	cases := []struct {
		name     string
		attrs    Attributes
		wantProb float64
		want     float64
	}{
		{
			name:     "young employed on benefits",
			attrs:    Attributes{Age: 40, DaysSinceLastPurchase: 10, Employed: true, OnBenefits: true},
			wantProb: 0.3,
			want:     74.5,
		},
		{
			name: "older varifocal high prescription",
			attrs: Attributes{
				Age: 60, DaysSinceLastPurchase: 400,
				Employed: true, Driver: true, VDUUser: true, Varifocal: true, HighPrescription: true,
			},
			wantProb: 0.8,
			want:     153,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Score(Encode(tc.attrs))
			require.NoError(t, err)
			assert.InDelta(t, tc.wantProb, got.PurchaseProbability, 1e-9)
			assert.InDelta(t, tc.want, got.PredictedSpend, 1e-9)
		})
	}
}

func TestScorer_DoesNotClampSpend(t *testing.T) {
	s := loadFixture(t)

	got, err := s.Score(Encode(Attributes{Age: 0, DaysSinceLastPurchase: 5000}))
	require.NoError(t, err)
	assert.InDelta(t, -217.0, got.PredictedSpend, 1e-9)
}

func TestScorer_NilIsUnavailable(t *testing.T) {
	var s *Scorer
	assert.False(t, s.Ready())

	_, err := s.Score(FeatureVector{})
	assert.ErrorIs(t, err, ErrModelUnavailable)

	var p Predictor = s
	_, err = p.Score(FeatureVector{})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

type stubPredictor struct{ ready bool }

func (stubPredictor) Score(FeatureVector) (Result, error) { return Result{}, nil }

func (p stubPredictor) Ready() bool { return p.ready }

type plainPredictor struct{}

func (plainPredictor) Score(FeatureVector) (Result, error) { return Result{}, nil }

func TestAvailable(t *testing.T) {
	var unloaded *Scorer

	assert.False(t, Available(nil))
	assert.False(t, Available(unloaded))
	assert.True(t, Available(loadFixture(t)))
	assert.False(t, Available(stubPredictor{ready: false}))
	assert.True(t, Available(stubPredictor{ready: true}))
	assert.True(t, Available(plainPredictor{}), "predictors without Ready are assumed usable")
}

func TestLoad_MissingFile(t *testing.T) {
	s, err := Load("testdata/does-not-exist.json")
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestReadArtifact_RejectsFeatureOrderMismatch(t *testing.T) {
	a, err := ReadArtifactFile("testdata/model.json")
	require.NoError(t, err)

	a.Features[2], a.Features[3] = a.Features[3], a.Features[2]
	err = a.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature 2")
}

func TestReadArtifact_RejectsMalformedTrees(t *testing.T) {
	cases := map[string]string{
		"no trees":    `{"features":["age","days_lps","employed","benefits","driver","vdu","varifocal","high_rx"],"classifier":{"trees":[]},"regressor":{"mean":[0,0,0,0,0,0,0,0],"scale":[1,1,1,1,1,1,1,1],"coef":[0,0,0,0,0,0,0,0]}}`,
		"cycle":       `{"features":["age","days_lps","employed","benefits","driver","vdu","varifocal","high_rx"],"classifier":{"trees":[{"children_left":[0],"children_right":[0],"feature":[0],"threshold":[1],"value":[[1,1]]}]},"regressor":{"mean":[0,0,0,0,0,0,0,0],"scale":[1,1,1,1,1,1,1,1],"coef":[0,0,0,0,0,0,0,0]}}`,
		"zero scale":  `{"features":["age","days_lps","employed","benefits","driver","vdu","varifocal","high_rx"],"classifier":{"trees":[{"children_left":[-1],"children_right":[-1],"feature":[-2],"threshold":[-2],"value":[[1,1]]}]},"regressor":{"mean":[0,0,0,0,0,0,0,0],"scale":[1,0,1,1,1,1,1,1],"coef":[0,0,0,0,0,0,0,0]}}`,
		"bad feature": `{"features":["age","days_lps","employed","benefits","driver","vdu","varifocal","high_rx"],"classifier":{"trees":[{"children_left":[1,-1,-1],"children_right":[2,-1,-1],"feature":[9,-2,-2],"threshold":[1,-2,-2],"value":[[1,1],[1,0],[0,1]]}]},"regressor":{"mean":[0,0,0,0,0,0,0,0],"scale":[1,1,1,1,1,1,1,1],"coef":[0,0,0,0,0,0,0,0]}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadArtifact(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

func TestScorer_ConcurrentUse(t *testing.T) {
	s := loadFixture(t)
	v := Encode(Attributes{Age: 40, DaysSinceLastPurchase: 10, Employed: true, OnBenefits: true})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, err := s.Score(v)
				assert.NoError(t, err)
				assert.InDelta(t, 74.5, got.PredictedSpend, 1e-9)
			}
		}()
	}
	wg.Wait()
}

func TestResult_PercentProbability(t *testing.T) {
	assert.Equal(t, 73.46, Result{PurchaseProbability: 0.734567}.PercentProbability())
}
