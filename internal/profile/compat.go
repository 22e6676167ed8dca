package profile

import "math"

// ageRange is a closed integer interval.
type ageRange struct {
	min, max int
}

// ageBuckets maps the named age buckets a filter may carry to their
// inclusive intervals. Names outside this map are dropped during
// normalization and never match.
var ageBuckets = map[string]ageRange{
	"18-22": {18, 22},
	"23-33": {23, 33},
	"34+":   {34, math.MaxInt32},
}

// MutuallyCompatible reports whether two searchers accept each other:
// A's filter must accept B's profile and B's filter must accept A's.
// It is pure, symmetric, and returns false (never panics) when profile
// data is missing.
func MutuallyCompatible(pa Profile, fa FilterSpec, pb Profile, fb FilterSpec) bool {
	return fa.Accepts(pb) && fb.Accepts(pa)
}

// Accepts reports whether a profile satisfies this filter. A profile with
// no concrete gender is treated as missing and never accepted.
func (f FilterSpec) Accepts(p Profile) bool {
	if p.Gender != GenderMale && p.Gender != GenderFemale {
		return false
	}
	if f.Gender != Any && f.Gender != "" && f.Gender != p.Gender {
		return false
	}
	if !ageAllowed(f.AgeBuckets, p.Age) {
		return false
	}
	if f.Country != Any && f.Country != "" && f.Country != p.Country {
		return false
	}
	return true
}

// ageAllowed reports whether age falls inside at least one named bucket.
// An empty bucket set is unrestricted.
func ageAllowed(buckets []string, age int) bool {
	if len(buckets) == 0 {
		return true
	}
	for _, name := range buckets {
		r, ok := ageBuckets[name]
		if !ok {
			continue
		}
		if age >= r.min && age <= r.max {
			return true
		}
	}
	return false
}
