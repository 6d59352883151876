package domain

// Thresholds defines the adverse-weather criteria. Each criterion only
// applies when the matched observation actually carries the field; absent
// fields contribute nothing. The documented defaults are one of two published
// threshold sets, so all four values are configuration, never hardcoded by
// callers.
type Thresholds struct {
	WindSpeedKt  float64 // adverse when wind speed >= this
	PrecipMM     float64 // adverse when precipitation > this
	CeilingFt    float64 // adverse when ceiling < this
	VisibilityKm float64 // adverse when visibility < this
}

// DefaultThresholds returns the wind>=25kt / precip>0mm / ceiling<3000ft /
// visibility<5km criteria set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WindSpeedKt:  25,
		PrecipMM:     0,
		CeilingFt:    3000,
		VisibilityKm: 5,
	}
}

// ScoreWeights controls how much each exceeded criterion contributes to the
// numeric wx_score. Wind, ceiling, and visibility excesses are normalized
// against their thresholds, so their weights are unitless; a zero
// precipitation threshold (the default "any measurable precipitation"
// criterion) has no scale to normalize against, so its excess is the raw
// millimeter reading and Precip doubles as the millimeters-to-score
// conversion factor. The boolean flag is a plain OR over criteria and does
// not depend on the weights.
type ScoreWeights struct {
	Wind       float64
	Precip     float64
	Ceiling    float64
	Visibility float64
}

// DefaultScoreWeights weights all criteria equally.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Wind: 1, Precip: 1, Ceiling: 1, Visibility: 1}
}

// WeatherScore is the result of evaluating one observation against the
// thresholds. Score is the weighted sum of normalized threshold excesses;
// Adverse is true iff any single criterion is exceeded.
type WeatherScore struct {
	Score   float64
	Adverse bool
}

// ScoreWeather evaluates an observation against the thresholds. A nil
// observation returns (nil): no observation means no verdict, which callers
// must keep distinct from a confirmed-calm false.
func ScoreWeather(obs *WeatherObservation, th Thresholds, w ScoreWeights) *WeatherScore {
	if obs == nil {
		return nil
	}

	var ws WeatherScore
	if obs.WindSpeedKt != nil && *obs.WindSpeedKt >= th.WindSpeedKt {
		ws.Adverse = true
		ws.Score += w.Wind * excessAbove(*obs.WindSpeedKt, th.WindSpeedKt)
	}
	if obs.PrecipMM != nil && *obs.PrecipMM > th.PrecipMM {
		ws.Adverse = true
		ws.Score += w.Precip * excessAbove(*obs.PrecipMM, th.PrecipMM)
	}
	if obs.CeilingFt != nil && *obs.CeilingFt < th.CeilingFt {
		ws.Adverse = true
		ws.Score += w.Ceiling * excessBelow(*obs.CeilingFt, th.CeilingFt)
	}
	if obs.VisibilityKm != nil && *obs.VisibilityKm < th.VisibilityKm {
		ws.Adverse = true
		ws.Score += w.Visibility * excessBelow(*obs.VisibilityKm, th.VisibilityKm)
	}
	return &ws
}

// CombineScores merges per-role verdicts (origin, destination) into the
// record-level score and flag. Roles with no observation are skipped; when no
// role has a verdict both outputs are nil.
func CombineScores(scores ...*WeatherScore) (*float64, *bool) {
	var (
		total   float64
		adverse bool
		any     bool
	)
	for _, s := range scores {
		if s == nil {
			continue
		}
		any = true
		total += s.Score
		adverse = adverse || s.Adverse
	}
	if !any {
		return nil, nil
	}
	return &total, &adverse
}

// excessAbove normalizes how far v sits above the threshold. A zero
// threshold (precip > 0) degenerates to the raw value.
func excessAbove(v, threshold float64) float64 {
	if threshold <= 0 {
		return v
	}
	return (v - threshold) / threshold
}

// excessBelow normalizes how far v sits below the threshold.
func excessBelow(v, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	return (threshold - v) / threshold
}
