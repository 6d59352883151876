package stations

import "strings"

// Similarity scores two strings in [0, 1] using the Sørensen–Dice
// coefficient over character bigrams. Case-insensitive; one-character
// inputs only match exactly.
func Similarity(a, b string) float64 {
	a = strings.ToUpper(strings.TrimSpace(a))
	b = strings.ToUpper(strings.TrimSpace(b))
	if a == b && a != "" {
		return 1.0
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	ba := bigrams(a)
	bb := bigrams(b)

	var shared int
	for g, n := range ba {
		if m, ok := bb[g]; ok {
			shared += min(n, m)
		}
	}

	var total int
	for _, n := range ba {
		total += n
	}
	for _, n := range bb {
		total += n
	}
	return float64(2*shared) / float64(total)
}

func bigrams(s string) map[string]int {
	out := make(map[string]int, len(s))
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		out[string(runes[i:i+2])]++
	}
	return out
}

// hubRank orders equal-similarity candidates deterministically by rough
// passenger volume. Airports outside the list rank after every listed hub.
func hubRank(iata string) int {
	if r, ok := hubRanks[iata]; ok {
		return r
	}
	return len(hubRanks) + 1
}

// Largest US airports by enplanements; used only as a ranking tiebreak, so
// the exact ordering beyond "big before small" is not load-bearing.
var hubRanks = map[string]int{
	"ATL": 1, "DFW": 2, "DEN": 3, "ORD": 4, "LAX": 5,
	"CLT": 6, "MCO": 7, "LAS": 8, "PHX": 9, "MIA": 10,
	"SEA": 11, "IAH": 12, "JFK": 13, "EWR": 14, "FLL": 15,
	"MSP": 16, "SFO": 17, "DTW": 18, "BOS": 19, "SLC": 20,
	"PHL": 21, "BWI": 22, "TPA": 23, "SAN": 24, "LGA": 25,
	"MDW": 26, "BNA": 27, "IAD": 28, "DCA": 29, "AUS": 30,
}
