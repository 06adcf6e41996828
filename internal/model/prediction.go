package model

import "time"

// Labels reported to clients. The mobile app matches on these strings.
const (
	LabelDangerous = "Dangerous sound detected. Alerting Police"
	LabelSafe      = "No dangerous sound detected"
)

// Prediction is the outcome of classifying one clip.
type Prediction struct {
	Class      int
	ClassName  string
	Scores     []float64
	Confidence float64
	Dangerous  bool
	Label      string
	Duration   time.Duration // length of the decoded clip, zero for bare vectors
}

// NewPrediction builds a Prediction for the selected class of scores.
func NewPrediction(class int, scores []float64, dangerous bool) *Prediction {
	label := LabelSafe
	if dangerous {
		label = LabelDangerous
	}

	var confidence float64
	if class >= 0 && class < len(scores) {
		confidence = scores[class]
	}

	return &Prediction{
		Class:      class,
		Scores:     scores,
		Confidence: confidence,
		Dangerous:  dangerous,
		Label:      label,
	}
}
