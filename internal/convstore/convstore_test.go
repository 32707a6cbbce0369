package convstore

import "testing"

func TestValidUUID(t *testing.T) {
	cases := []struct {
		id string
		ok bool
	}{
		{"7b2e7f64-8f3a-4a9e-9f2b-0f0f4c2d9e11", true},
		{"7B2E7F64-8F3A-4A9E-9F2B-0F0F4C2D9E11", true},
		{"1", false},
		{"", false},
		{"not-a-uuid", false},
	}
	for _, c := range cases {
		if got := ValidUUID(c.id); got != c.ok {
			t.Fatalf("ValidUUID(%q) = %v, want %v", c.id, got, c.ok)
		}
	}
}
