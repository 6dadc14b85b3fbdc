package competition

import "math"

// EloDifference is the rating difference implied by a score, where score
// is wins plus half the jigos divided by games. It's infinite at 0 and 1.
func EloDifference(score float64) float64 {
	return -400 * math.Log10(1/score-1)
}

// LikelihoodOfSuperiority is the probability that the player with the
// given wins is the stronger, ignoring draws.
func LikelihoodOfSuperiority(wins, losses int) float64 {
	if wins+losses == 0 {
		return 0.5
	}
	return 0.5 * (1 + math.Erf(float64(wins-losses)/math.Sqrt(2*float64(wins+losses))))
}
