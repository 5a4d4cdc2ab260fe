package actions

import (
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Edit-distance similarity band a candidate must fall in to be considered.
// Both constants are empirically tuned and kept for compatibility.
const (
	minSimilarity = 0.299
	maxSimilarity = 0.9
)

var (
	editDistance = metrics.NewLevenshtein()
	bigrams      = metrics.NewSorensenDice()
)

// closestMatch ranks candidates against name:
//
//  1. an exact name match wins immediately;
//  2. Levenshtein similarity must lie in (minSimilarity, maxSimilarity];
//  3. a single survivor is returned;
//  4. otherwise the Sorensen-Dice maxima are kept;
//  5. equal-length names are preferred, then one is picked at random.
func closestMatch(name string, candidates []ActionData, random func(int) int) (ActionData, bool) {
	for _, c := range candidates {
		if c.Name == name {
			return c, true
		}
	}

	var band []ActionData
	for _, c := range candidates {
		score := strutil.Similarity(name, c.Name, editDistance)
		if score > minSimilarity && score <= maxSimilarity {
			band = append(band, c)
		}
	}

	switch len(band) {
	case 0:
		return ActionData{}, false
	case 1:
		return band[0], true
	}

	var best []ActionData
	bestScore := -1.0
	for _, c := range band {
		score := strutil.Similarity(name, c.Name, bigrams)
		switch {
		case score > bestScore:
			bestScore = score
			best = []ActionData{c}
		case score == bestScore:
			best = append(best, c)
		}
	}

	if len(best) > 1 {
		nameLen := utf8.RuneCountInString(name)
		var sameLength []ActionData
		for _, c := range best {
			if utf8.RuneCountInString(c.Name) == nameLen {
				sameLength = append(sameLength, c)
			}
		}
		if len(sameLength) > 0 {
			best = sameLength
		}
	}

	if len(best) == 1 {
		return best[0], true
	}
	return best[random(len(best))], true
}
