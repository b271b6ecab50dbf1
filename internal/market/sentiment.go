package market

import "strings"

// Headline sentiment lexicon. Scores are in [-1, 1]; unknown words score 0.
// A compact financial-news vocabulary stands in for a full sentiment model,
// which stays outside this module.
var sentimentLexicon = map[string]float64{
	"beat": 0.6, "beats": 0.6, "strong": 0.5, "record": 0.5, "surge": 0.7,
	"surges": 0.7, "rally": 0.6, "rallies": 0.6, "gain": 0.4, "gains": 0.4,
	"growth": 0.4, "upgrade": 0.6, "upgraded": 0.6, "bullish": 0.7,
	"outperform": 0.5, "profit": 0.4, "profits": 0.4, "soar": 0.7, "soars": 0.7,
	"jump": 0.5, "jumps": 0.5, "buy": 0.3, "optimistic": 0.5, "positive": 0.4,

	"miss": -0.6, "misses": -0.6, "weak": -0.5, "plunge": -0.7, "plunges": -0.7,
	"fall": -0.4, "falls": -0.4, "drop": -0.4, "drops": -0.4, "loss": -0.5,
	"losses": -0.5, "downgrade": -0.6, "downgraded": -0.6, "bearish": -0.7,
	"underperform": -0.5, "lawsuit": -0.5, "recall": -0.5, "crash": -0.8,
	"crashes": -0.8, "sell": -0.3, "warning": -0.5, "cuts": -0.4, "negative": -0.4,
	"bankruptcy": -0.9, "fraud": -0.8, "probe": -0.4, "slump": -0.6, "slumps": -0.6,
}

var sentimentNegators = map[string]bool{
	"not": true, "no": true, "never": true, "without": true,
}

// ScoreSentiment scores a headline in [-1, 1] by averaging lexicon hits, with
// simple negation flipping ("not strong" scores negative). Empty or fully
// unknown text scores 0.
func ScoreSentiment(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	var sum float64
	var hits int
	negate := false
	for _, w := range words {
		w = strings.Trim(w, ".,:;!?'\"()")
		if sentimentNegators[w] {
			negate = true
			continue
		}
		score, ok := sentimentLexicon[w]
		if ok {
			if negate {
				score = -score
			}
			sum += score
			hits++
		}
		negate = false
	}
	if hits == 0 {
		return 0
	}
	avg := sum / float64(hits)
	if avg > 1 {
		avg = 1
	} else if avg < -1 {
		avg = -1
	}
	return avg
}
