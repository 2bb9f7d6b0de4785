package outcome

// Pure rollup arithmetic for the three aggregation levels. No store access,
// no rounding: values stay float64 end to end and are rounded only at
// presentation time, so rounding error cannot compound across levels.

// WeightedAverage computes sum(w_i/100 * v_i) / sum(w_i/100) over the
// non-missing inputs. Inputs with a nil value are excluded from numerator and
// denominator alike. The second return is false when nothing was assessable
// (no inputs, all missing, or zero total weight).
func WeightedAverage(inputs []WeightedInput) (float64, bool) {
	var num, den float64
	for _, in := range inputs {
		if in.Value == nil {
			continue
		}
		w := in.Weight / 100
		num += w * *in.Value
		den += w
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// CourseOutcomeScore rolls technique (or sub-outcome) raw scores up to a
// course-outcome value.
func CourseOutcomeScore(inputs []WeightedInput) (float64, bool) {
	return WeightedAverage(inputs)
}

// ProgramOutcomeAttainment aggregates course contributions into a program
// outcome value: each course outcome score weighted by credit hours times
// its contribution weight. Courses with a missing course-outcome score drop
// out of both numerator and denominator.
func ProgramOutcomeAttainment(contribs []CourseContribution) (float64, bool) {
	var num, den float64
	for _, c := range contribs {
		if c.Score == nil {
			continue
		}
		basis := float64(c.CreditHours) * c.Weight / 100
		num += *c.Score * basis
		den += basis
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// GraduateProfileAttainment rolls program-outcome attainments up to a
// graduate-profile value using the mapping contribution weights.
func GraduateProfileAttainment(inputs []WeightedInput) (float64, bool) {
	return WeightedAverage(inputs)
}

// CoverageTotal sums the declared weights of all inputs, assessed or not.
// Used by the full-coverage gradability policy.
func CoverageTotal(inputs []WeightedInput) float64 {
	var t float64
	for _, in := range inputs {
		t += in.Weight
	}
	return t
}
