package training

import (
	"github.com/wonny/argos/internal/contracts"
)

// evaluate computes holdout metrics for a fitted classifier
func evaluate(c Classifier, holdout []contracts.LabeledSample) (accuracy, f1 float64, err error) {
	if len(holdout) == 0 {
		return 0, 0, nil
	}

	var tp, fp, fn, correct int
	for _, s := range holdout {
		p, perr := c.PredictProba(s.Features)
		if perr != nil {
			return 0, 0, perr
		}

		predicted := contracts.LabelNegative
		if p >= 0.5 {
			predicted = contracts.LabelPositive
		}

		if predicted == s.Label {
			correct++
		}
		switch {
		case predicted == contracts.LabelPositive && s.Label == contracts.LabelPositive:
			tp++
		case predicted == contracts.LabelPositive && s.Label == contracts.LabelNegative:
			fp++
		case predicted == contracts.LabelNegative && s.Label == contracts.LabelPositive:
			fn++
		}
	}

	accuracy = float64(correct) / float64(len(holdout))

	// F1 = 2TP / (2TP + FP + FN), 양성 예측/실측이 전혀 없으면 0
	denom := float64(2*tp + fp + fn)
	if denom > 0 {
		f1 = float64(2*tp) / denom
	}

	return accuracy, f1, nil
}

// splitChronological splits samples into train prefix and holdout suffix
// 시간순을 보존해 미래 정보가 평가로 새지 않게 한다. 무작위 분할 금지.
func splitChronological(samples []contracts.LabeledSample, holdoutRatio float64) (train, holdout []contracts.LabeledSample) {
	holdoutSize := int(float64(len(samples)) * holdoutRatio)
	if holdoutSize < 1 {
		holdoutSize = 1
	}
	if holdoutSize >= len(samples) {
		holdoutSize = len(samples) - 1
	}

	cut := len(samples) - holdoutSize
	return samples[:cut], samples[cut:]
}
