package util

import "testing"

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
		valid bool
	}{
		{name: "decimal dot", input: "0.7", want: "0.7", valid: true},
		{name: "integer", input: "28", want: "28", valid: true},
		{name: "trailing dot", input: "1.1.", want: "1.1", valid: true},
		{name: "leading dot", input: ".5", want: "0.5", valid: true},
		{name: "decimal comma", input: "0,35", want: "0.35", valid: true},
		{name: "dot only", input: ".", valid: false},
		{name: "empty", input: "", valid: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseDecimal(tc.input)
			if got.Valid != tc.valid {
				t.Fatalf("valid=%v want %v", got.Valid, tc.valid)
			}
			if tc.valid && got.Decimal.String() != tc.want {
				t.Fatalf("got %s want %s", got.Decimal.String(), tc.want)
			}
		})
	}
}

func TestNullFloat(t *testing.T) {
	if v := NullFloat(ParseDecimal("")); v != nil {
		t.Fatalf("want nil, got %v", v)
	}
	if v, ok := NullFloat(ParseDecimal("0.25")).(float64); !ok || v != 0.25 {
		t.Fatalf("got %v", v)
	}
}

func TestTruncateRunes(t *testing.T) {
	got := TruncateRunes("พี่สมชาย", 3)
	if got != "พี่" {
		t.Fatalf("got %q", got)
	}
	if TruncateRunes("abc", 10) != "abc" {
		t.Fatal("short string changed")
	}
}
