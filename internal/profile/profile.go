// Package profile defines the normalized attributes a connection presents
// about itself (gender, age, country) and the acceptance criteria it applies
// to a prospective partner. Normalization never fails: malformed input is
// coerced to the nearest valid default rather than rejected.
package profile

import "strings"

// Any is the unrestricted value for filter fields and for a profile's country.
const Any = "any"

// Concrete gender values. A connection's own gender is always one of these;
// only filters may carry Any.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Age bounds applied when the adult-only policy is configured.
const (
	AdultMinAge = 18
	AdultMaxAge = 99
)

// Profile holds the normalized attributes of a connection. It is owned
// exclusively by that connection and discarded on disconnect.
type Profile struct {
	Gender  string `json:"gender"`
	Age     int    `json:"age"`
	Country string `json:"country"`
}

// FilterSpec is the acceptance criteria a searcher applies to a prospective
// partner. A new search replaces any prior filter wholesale; there is no
// merging. Empty AgeBuckets means unrestricted.
type FilterSpec struct {
	Gender     string   `json:"gender"`
	AgeBuckets []string `json:"age_buckets"`
	Country    string   `json:"country"`
}

// NormalizeProfile coerces raw profile input into a valid Profile. The own
// gender must resolve to a concrete value because filters can only test
// concrete genders; anything other than "female" becomes "male". With
// adultOnly the age is clamped to [18,99], otherwise negative ages are
// raised to zero. The country is uppercased, empty meaning Any.
func NormalizeProfile(raw Profile, adultOnly bool) Profile {
	p := Profile{
		Gender:  GenderMale,
		Age:     raw.Age,
		Country: normalizeCountry(raw.Country),
	}
	if strings.EqualFold(raw.Gender, GenderFemale) {
		p.Gender = GenderFemale
	}
	if adultOnly {
		if p.Age < AdultMinAge {
			p.Age = AdultMinAge
		}
		if p.Age > AdultMaxAge {
			p.Age = AdultMaxAge
		}
	} else if p.Age < 0 {
		p.Age = 0
	}
	return p
}

// NormalizeFilter coerces raw filter input into a valid FilterSpec. An
// unrecognized gender becomes Any, unknown age bucket names are dropped,
// and the country is uppercased with empty meaning Any.
func NormalizeFilter(raw FilterSpec) FilterSpec {
	f := FilterSpec{
		Gender:  Any,
		Country: normalizeCountry(raw.Country),
	}
	switch strings.ToLower(raw.Gender) {
	case GenderMale:
		f.Gender = GenderMale
	case GenderFemale:
		f.Gender = GenderFemale
	}
	for _, name := range raw.AgeBuckets {
		if _, ok := ageBuckets[name]; ok {
			f.AgeBuckets = append(f.AgeBuckets, name)
		}
	}
	return f
}

func normalizeCountry(raw string) string {
	c := strings.TrimSpace(raw)
	if c == "" || strings.EqualFold(c, Any) {
		return Any
	}
	return strings.ToUpper(c)
}
