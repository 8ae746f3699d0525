package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"drops fragment", "https://example.com/page#section", "https://example.com/page"},
		{"lowercases host", "https://EXAMPLE.COM/Page", "https://example.com/Page"},
		{"strips trailing slash", "https://example.com/about/", "https://example.com/about"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"keeps query", "https://example.com/search?q=go&page=2", "https://example.com/search?q=go&page=2"},
		{"trims whitespace", "  https://example.com/a  ", "https://example.com/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Normalize(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	once, err := Normalize("https://Example.com/a/b/#frag")
	require.NoError(t, err)
	twice, err := Normalize(once)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestValidator(t *testing.T) {
	t.Parallel()

	v, err := NewValidator("https://example.com/")
	require.NoError(t, err)

	require.True(t, v.Valid("https://example.com/about"))
	require.True(t, v.Valid("http://example.com/pricing?plan=pro"))
	require.False(t, v.Valid("https://other.com/about"), "foreign host")
	require.False(t, v.Valid("ftp://example.com/file"), "non-http scheme")
	require.False(t, v.Valid("https://example.com/report.pdf"), "skipped extension")
	require.False(t, v.Valid("https://example.com/logo.PNG"), "extension check is case-insensitive")
	require.False(t, v.Valid("https://example.com/app.js"), "static asset")

	require.True(t, v.SameHost("https://example.com/report.pdf"))
	require.False(t, v.SameHost("https://cdn.example.com/report.pdf"))
}

func TestNewValidatorRejectsBadSeeds(t *testing.T) {
	t.Parallel()

	_, err := NewValidator("not a url at all ://")
	require.Error(t, err)

	_, err = NewValidator("ftp://example.com/")
	require.ErrorIs(t, err, ErrInvalidURL)

	_, err = NewValidator("/relative/path")
	require.ErrorIs(t, err, ErrInvalidURL)
}
