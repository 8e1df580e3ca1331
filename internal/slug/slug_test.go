package slug

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Software Engineer", "software-engineer"},
		{"  Google LLC  ", "google-llc"},
		{"U.S. Bank, N.A.", "u-s-bank-n-a"},
		{"AT&T Services", "at-t-services"},
		{"--New   York--", "new-york"},
		{"Sr. Data Scientist (ML)", "sr-data-scientist-ml"},
		{"Café Rouge", "caf-rouge"},
		{"", ""},
		{"!!!", ""},
		{"A1", "a1"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugifyIdempotent(t *testing.T) {
	inputs := []string{
		"Software Engineer",
		"U.S. Bank",
		"  --weird__input!!  ",
		"ÜNÏCÖDÉ Name",
		"already-a-slug",
		"",
		"123 Main St.",
	}

	for _, in := range inputs {
		once := Slugify(in)
		twice := Slugify(once)
		if once != twice {
			t.Errorf("Slugify not idempotent for %q: %q then %q", in, once, twice)
		}
		if once != "" && !IsValid(once) {
			t.Errorf("Slugify(%q) = %q is not a valid slug", in, once)
		}
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"software-engineer", true},
		{"a", true},
		{"a1-b2", true},
		{"", false},
		{"-leading", false},
		{"trailing-", false},
		{"double--hyphen", false},
		{"Upper", false},
		{"with space", false},
		{"under_score", false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.in); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsValidStateCodes(t *testing.T) {
	for _, code := range []string{"TX", "CA", "NY", "WA", "DC", "PR"} {
		lower := strings.ToLower(code)
		if !IsValid(lower) {
			t.Errorf("IsValid(%q) = false, want true", lower)
		}
		if IsValid(code) {
			t.Errorf("IsValid(%q) = true, want false for upper case", code)
		}
	}

	// A state name slug is a valid slug but never equals the code.
	if got := Slugify("New York"); got == "ny" || !IsValid(got) {
		t.Errorf("Slugify(New York) = %q", got)
	}
}

func TestVariants(t *testing.T) {
	tests := []struct {
		in       string
		contains []string
		count    int
	}{
		{"us-based-engineer", []string{"us-based-engineer", "u-s-based-engineer"}, 2},
		{"software-engineer", []string{"software-engineer"}, 1},
		{"bank-of-usa", []string{"bank-of-usa", "bank-of-u-s-a"}, 2},
		{"uk-us-trading", []string{"uk-us-trading", "u-k-us-trading", "uk-u-s-trading", "u-k-u-s-trading"}, 4},
		{"business-analyst", []string{"business-analyst"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Variants(tt.in)
			if len(got) != tt.count {
				t.Errorf("Variants(%q) returned %d variants %v, want %d", tt.in, len(got), got, tt.count)
			}
			if got[0] != tt.in {
				t.Errorf("first variant = %q, want original %q", got[0], tt.in)
			}
			for _, want := range tt.contains {
				found := false
				for _, v := range got {
					if v == want {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("Variants(%q) = %v, missing %q", tt.in, got, want)
				}
			}
		})
	}
}

func TestVariantsMatchSlugifiedNames(t *testing.T) {
	// "U S Based Engineer" is stored with the letters split; its slug only
	// matches through the expanded variant.
	stored := Slugify("U S Based Engineer")
	found := false
	for _, v := range Variants("us-based-engineer") {
		if v == stored {
			found = true
		}
	}
	if !found {
		t.Errorf("no variant of us-based-engineer matches %q", stored)
	}
}

func TestVariantsCapped(t *testing.T) {
	got := Variants("us-us-us-us-us-us")
	if len(got) != 16 {
		t.Errorf("len(Variants) = %d, want 16", len(got))
	}
}

func TestSQLExpr(t *testing.T) {
	got := SQLExpr("employer_name")
	want := "trim(both '-' from regexp_replace(lower(employer_name), '[^a-z0-9]+', '-', 'g'))"
	if got != want {
		t.Errorf("SQLExpr = %q, want %q", got, want)
	}
}
