package profile

import "testing"

func male(age int) Profile {
	return Profile{Gender: GenderMale, Age: age, Country: Any}
}

func female(age int) Profile {
	return Profile{Gender: GenderFemale, Age: age, Country: Any}
}

func openFilter() FilterSpec {
	return FilterSpec{Gender: Any, Country: Any}
}

// ---------------------------------------------------------------------------
// FilterSpec.Accepts
// ---------------------------------------------------------------------------

func TestAccepts_GenderFilter(t *testing.T) {
	f := FilterSpec{Gender: GenderFemale, Country: Any}

	if !f.Accepts(female(25)) {
		t.Error("female filter should accept a female profile")
	}
	if f.Accepts(male(25)) {
		t.Error("female filter should reject a male profile")
	}
	if !openFilter().Accepts(male(25)) {
		t.Error("any-gender filter should accept a male profile")
	}
}

func TestAccepts_MissingProfileNeverAccepted(t *testing.T) {
	// A profile that was never set has no concrete gender and must not
	// match even the most permissive filter.
	if openFilter().Accepts(Profile{}) {
		t.Error("empty profile should never be accepted")
	}
	if openFilter().Accepts(Profile{Gender: "any", Age: 25}) {
		t.Error("non-concrete gender should never be accepted")
	}
}

func TestAccepts_AgeBuckets(t *testing.T) {
	f := FilterSpec{Gender: Any, AgeBuckets: []string{"18-22"}, Country: Any}

	cases := []struct {
		age      int
		expected bool
	}{
		{17, false},
		{18, true},
		{22, true},
		{23, false},
	}
	for _, tc := range cases {
		if got := f.Accepts(male(tc.age)); got != tc.expected {
			t.Errorf("age %d: expected %v, got %v", tc.age, tc.expected, got)
		}
	}
}

func TestAccepts_OpenEndedBucket(t *testing.T) {
	f := FilterSpec{Gender: Any, AgeBuckets: []string{"34+"}, Country: Any}

	if f.Accepts(male(33)) {
		t.Error("34+ should reject age 33")
	}
	if !f.Accepts(male(34)) {
		t.Error("34+ should accept age 34")
	}
	if !f.Accepts(male(120)) {
		t.Error("34+ has no upper bound")
	}
}

func TestAccepts_MultipleBuckets(t *testing.T) {
	f := FilterSpec{Gender: Any, AgeBuckets: []string{"18-22", "34+"}, Country: Any}

	if !f.Accepts(male(20)) {
		t.Error("age 20 falls in 18-22")
	}
	if f.Accepts(male(28)) {
		t.Error("age 28 falls in no selected bucket")
	}
	if !f.Accepts(male(40)) {
		t.Error("age 40 falls in 34+")
	}
}

func TestAccepts_CountryFilter(t *testing.T) {
	f := FilterSpec{Gender: Any, Country: "US"}

	if !f.Accepts(Profile{Gender: GenderMale, Age: 25, Country: "US"}) {
		t.Error("US filter should accept a US profile")
	}
	if f.Accepts(Profile{Gender: GenderMale, Age: 25, Country: "DE"}) {
		t.Error("US filter should reject a DE profile")
	}
	if f.Accepts(Profile{Gender: GenderMale, Age: 25, Country: Any}) {
		t.Error("US filter should reject a profile with no country")
	}
}

// ---------------------------------------------------------------------------
// MutuallyCompatible
// ---------------------------------------------------------------------------

func TestMutuallyCompatible_BothOpen(t *testing.T) {
	if !MutuallyCompatible(male(25), openFilter(), female(30), openFilter()) {
		t.Error("two open filters should match")
	}
}

func TestMutuallyCompatible_OneWayRejection(t *testing.T) {
	// A wants female; B is male. B accepts anyone.
	fa := FilterSpec{Gender: GenderFemale, Country: Any}
	if MutuallyCompatible(female(25), fa, male(25), openFilter()) {
		t.Error("A's filter rejects B, so the pair is incompatible")
	}
	// The reverse direction fails the same way.
	if MutuallyCompatible(male(25), openFilter(), female(25), FilterSpec{Gender: GenderFemale, Country: Any}) {
		t.Error("B's filter rejects A, so the pair is incompatible")
	}
}

func TestMutuallyCompatible_Symmetric(t *testing.T) {
	pa, fa := male(20), FilterSpec{Gender: GenderFemale, AgeBuckets: []string{"18-22"}, Country: Any}
	pb, fb := female(21), FilterSpec{Gender: GenderMale, Country: Any}

	ab := MutuallyCompatible(pa, fa, pb, fb)
	ba := MutuallyCompatible(pb, fb, pa, fa)
	if ab != ba {
		t.Errorf("compatibility must be symmetric: ab=%v ba=%v", ab, ba)
	}
	if !ab {
		t.Error("expected this pair to be compatible")
	}
}

func TestMutuallyCompatible_AgeMismatch(t *testing.T) {
	fa := FilterSpec{Gender: Any, AgeBuckets: []string{"18-22"}, Country: Any}
	if MutuallyCompatible(male(25), fa, female(30), openFilter()) {
		t.Error("B's age 30 is outside A's 18-22 bucket")
	}
}
