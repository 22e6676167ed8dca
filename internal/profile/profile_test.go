package profile

import "testing"

// ---------------------------------------------------------------------------
// NormalizeProfile
// ---------------------------------------------------------------------------

func TestNormalizeProfile_GenderDefaultsToMale(t *testing.T) {
	cases := []string{"", "unknown", "MALE", "m", "nonbinary"}
	for _, g := range cases {
		p := NormalizeProfile(Profile{Gender: g, Age: 25}, false)
		if p.Gender != GenderMale {
			t.Errorf("gender %q: expected %q, got %q", g, GenderMale, p.Gender)
		}
	}
}

func TestNormalizeProfile_FemaleCaseInsensitive(t *testing.T) {
	for _, g := range []string{"female", "Female", "FEMALE"} {
		p := NormalizeProfile(Profile{Gender: g, Age: 25}, false)
		if p.Gender != GenderFemale {
			t.Errorf("gender %q: expected %q, got %q", g, GenderFemale, p.Gender)
		}
	}
}

func TestNormalizeProfile_AdultOnlyClampsAge(t *testing.T) {
	cases := []struct {
		age      int
		expected int
	}{
		{0, AdultMinAge},
		{17, AdultMinAge},
		{18, 18},
		{50, 50},
		{99, 99},
		{100, AdultMaxAge},
		{-5, AdultMinAge},
	}
	for _, tc := range cases {
		p := NormalizeProfile(Profile{Gender: "male", Age: tc.age}, true)
		if p.Age != tc.expected {
			t.Errorf("age %d: expected %d, got %d", tc.age, tc.expected, p.Age)
		}
	}
}

func TestNormalizeProfile_WithoutAdultOnly(t *testing.T) {
	p := NormalizeProfile(Profile{Gender: "male", Age: 15}, false)
	if p.Age != 15 {
		t.Errorf("expected age 15 preserved, got %d", p.Age)
	}

	p = NormalizeProfile(Profile{Gender: "male", Age: -3}, false)
	if p.Age != 0 {
		t.Errorf("expected negative age raised to 0, got %d", p.Age)
	}
}

func TestNormalizeProfile_Country(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"", Any},
		{"any", Any},
		{"ANY", Any},
		{"us", "US"},
		{" de ", "DE"},
		{"FR", "FR"},
	}
	for _, tc := range cases {
		p := NormalizeProfile(Profile{Gender: "male", Age: 25, Country: tc.in}, false)
		if p.Country != tc.expected {
			t.Errorf("country %q: expected %q, got %q", tc.in, tc.expected, p.Country)
		}
	}
}

// ---------------------------------------------------------------------------
// NormalizeFilter
// ---------------------------------------------------------------------------

func TestNormalizeFilter_GenderDefaultsToAny(t *testing.T) {
	for _, g := range []string{"", "both", "whatever"} {
		f := NormalizeFilter(FilterSpec{Gender: g})
		if f.Gender != Any {
			t.Errorf("gender %q: expected %q, got %q", g, Any, f.Gender)
		}
	}

	f := NormalizeFilter(FilterSpec{Gender: "Female"})
	if f.Gender != GenderFemale {
		t.Errorf("expected %q, got %q", GenderFemale, f.Gender)
	}
	f = NormalizeFilter(FilterSpec{Gender: "MALE"})
	if f.Gender != GenderMale {
		t.Errorf("expected %q, got %q", GenderMale, f.Gender)
	}
}

func TestNormalizeFilter_DropsUnknownBuckets(t *testing.T) {
	f := NormalizeFilter(FilterSpec{
		AgeBuckets: []string{"18-22", "bogus", "34+", "99-120"},
	})
	if len(f.AgeBuckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d: %v", len(f.AgeBuckets), f.AgeBuckets)
	}
	if f.AgeBuckets[0] != "18-22" || f.AgeBuckets[1] != "34+" {
		t.Errorf("unexpected buckets: %v", f.AgeBuckets)
	}
}

func TestNormalizeFilter_AllBucketsDroppedMeansUnrestricted(t *testing.T) {
	f := NormalizeFilter(FilterSpec{AgeBuckets: []string{"nope"}})
	if len(f.AgeBuckets) != 0 {
		t.Fatalf("expected empty buckets, got %v", f.AgeBuckets)
	}
	// Empty bucket set is unrestricted: any age passes.
	if !f.Accepts(Profile{Gender: GenderMale, Age: 77, Country: Any}) {
		t.Error("expected unrestricted age after all buckets dropped")
	}
}
