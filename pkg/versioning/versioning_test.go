package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		major   int
		minor   int
		patch   int
	}{
		{name: "floor", input: "5.0.0", major: 5},
		{name: "ceiling", input: "99.99.99", major: 99, minor: 99, patch: 99},
		{name: "whitespace tolerated", input: " 6.10.0 ", major: 6, minor: 10},
		{name: "two components", input: "6.10", wantErr: true},
		{name: "prerelease rejected", input: "6.0.0-beta", wantErr: true},
		{name: "v prefix rejected", input: "v6.0.0", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.major, v.Major)
			assert.Equal(t, tt.minor, v.Minor)
			assert.Equal(t, tt.patch, v.Patch)
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want Comparison
	}{
		{"5.0.0", "5.0.0", ComparisonEqual},
		{"5.0.0", "6.0.0", ComparisonLess},
		{"6.2.0", "6.10.0", ComparisonLess},
		{"6.10.0", "6.2.0", ComparisonGreater},
		{"5.0.0", "99.99.99", ComparisonLess},
	}

	for _, tt := range tests {
		a := MustParse(tt.a)
		b := MustParse(tt.b)
		assert.Equal(t, tt.want, a.Compare(b), "%s vs %s", tt.a, tt.b)
	}
}

func TestParseOrDefault(t *testing.T) {
	v, err := ParseOrDefault("", Floor)
	require.NoError(t, err)
	assert.Equal(t, Floor, v.String())

	v, err = ParseOrDefault("6.5.0", Floor)
	require.NoError(t, err)
	assert.Equal(t, "6.5.0", v.String())
}

func TestBumpPatch(t *testing.T) {
	assert.Equal(t, "1.0.1", MustParse("1.0.0").BumpPatch().String())
}
