package quiz

import "math"

// Score returns round(correct/total*100), 0 for an empty quiz.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// Passed reports whether score reaches passingScore. A zero passingScore means DefaultPassingScore.
func Passed(score, passingScore int) bool {
	if passingScore <= 0 {
		passingScore = DefaultPassingScore
	}
	return score >= passingScore
}
