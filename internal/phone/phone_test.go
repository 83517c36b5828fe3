package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	cases := []struct {
		raw   string
		want  string
		valid bool
	}{
		{"0901234567", "0901234567", true},
		{"090 123 4567", "0901234567", true},
		{"090-123-45678", "09012345678", true},
		{"+84 901 234 567", "0901234567", true},
		{"84901234567", "0901234567", true},
		{"901234567", "901234567", false},
		{"090123", "090123", false},
		{"090123456789", "090123456789", false},
		{"(090) 123.4567", "0901234567", true},
		{"", "", false},
		{"abc0901234567", "abc0901234567", false},
		{"09x01234567", "09x01234567", false},
		{"090+1234567", "090+1234567", false},
		{"++84901234567", "++84901234567", false},
		{"0901234567#", "0901234567#", false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := Canonical(tc.raw)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.valid, ok)
		})
	}
}
