package scoring

// FeatureCount is the width of the vector the fitted models consume.
const FeatureCount = 8

// FeatureNames lists the model inputs in the order they were trained on.
// A fitted artifact must declare exactly these names in exactly this order.
var FeatureNames = [FeatureCount]string{
	"age",
	"days_lps",
	"employed",
	"benefits",
	"driver",
	"vdu",
	"varifocal",
	"high_rx",
}

// Attributes holds the raw patient attributes a prediction is derived from.
type Attributes struct {
	Age                   int
	DaysSinceLastPurchase int
	Employed              bool
	OnBenefits            bool
	Driver                bool
	VDUUser               bool
	Varifocal             bool
	HighPrescription      bool
}

// FeatureVector is the numeric encoding of Attributes. Field order matches FeatureNames.
type FeatureVector struct {
	Age                   float64
	DaysSinceLastPurchase float64
	Employed              float64
	Benefits              float64
	Driver                float64
	VDU                   float64
	Varifocal             float64
	HighRx                float64
}

// Encode maps patient attributes to the feature vector the models expect.
//
// The benefits flag is inverted (on benefits -> 0, not on benefits -> 1). The
// historical training data was encoded this way and every fitted artifact
// depends on it. Values are passed through without range checks.
func Encode(a Attributes) FeatureVector {
	return FeatureVector{
		Age:                   float64(a.Age),
		DaysSinceLastPurchase: float64(a.DaysSinceLastPurchase),
		Employed:              flag(a.Employed),
		Benefits:              1 - flag(a.OnBenefits),
		Driver:                flag(a.Driver),
		VDU:                   flag(a.VDUUser),
		Varifocal:             flag(a.Varifocal),
		HighRx:                flag(a.HighPrescription),
	}
}

// Values flattens the vector in FeatureNames order.
func (v FeatureVector) Values() [FeatureCount]float64 {
	return [FeatureCount]float64{
		v.Age,
		v.DaysSinceLastPurchase,
		v.Employed,
		v.Benefits,
		v.Driver,
		v.VDU,
		v.Varifocal,
		v.HighRx,
	}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
