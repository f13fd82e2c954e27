package semver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	v, err := Parse("v1.4.2-rc.1+build.7")
	require.NoError(t, err)
	assert.Equal(t, &Version{Major: 1, Minor: 4, Patch: 2, Prerelease: "rc.1", Build: "build.7"}, v)
	assert.Equal(t, "1.4.2-rc.1+build.7", v.String())

	for _, bad := range []string{"1.4", "1.4.x", "99999999999999999999.0.0"} {
		_, err = Parse(bad)
		assert.Error(t, err, bad)
	}
	assert.Panics(t, func() { MustParse("nope") })
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.2.0", "1.1.9", 1},
		{"2.0.0", "10.0.0", -1},
		{"1.0.0-alpha", "1.0.0", -1},
		{"1.0.0", "1.0.0-alpha", 1},
		{"1.0.0-alpha", "1.0.0-beta", -1},
		{"1.0.0+a", "1.0.0+b", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, MustParse(tt.a).Compare(MustParse(tt.b)))
		})
	}
}

func TestReads(t *testing.T) {
	code := MustParse("1.2.0")

	tests := []struct {
		stored string
		want   bool
	}{
		{"1.2.0", true},
		{"1.0.0", true},
		{"1.2.0-rc.1", true},
		{"1.3.0", false},
		{"0.9.0", false},
		{"2.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.stored, func(t *testing.T) {
			assert.Equal(t, tt.want, code.Reads(MustParse(tt.stored)))
		})
	}
}
