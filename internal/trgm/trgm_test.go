package trgm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrigrams(t *testing.T) {
	require.Equal(t, Set{"  c", " ca", "at ", "cat"}, Trigrams("cat"))
	require.Equal(t, Set{"  2", " 25", "25 "}, Trigrams("25"))
	require.Equal(t, Trigrams("Foo-Bar"), Trigrams("foo bar"))
	require.Empty(t, Trigrams(""))
	require.Empty(t, Trigrams("!!!"))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "Hello", b: "Hello", want: 1},
		{name: "case insensitive", a: "ADELE", b: "adele", want: 1},
		{name: "short token", a: "25", b: "25", want: 1},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
		{name: "empty", a: "", b: "Hello", want: 0},
		{name: "both empty", a: "", b: "", want: 0},
		// {"  c"," ca","cat","at "} vs {"  c"," ca","car","ar "}: 2 shared of 6
		{name: "partial", a: "cat", b: "car", want: 2.0 / 6.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{{"Hello", "Hallo"}, {"Rolling in the Deep", "rolling deep"}, {"25", "21"}}
	for _, p := range pairs {
		require.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]))
	}
}

func TestExtractorCachesSets(t *testing.T) {
	ex := NewExtractor(2)
	first := ex.Trigrams("hello")
	second := ex.Trigrams("hello")
	require.Equal(t, first, second)
	require.Equal(t, 1, ex.cache.Len())
}

func TestMetric(t *testing.T) {
	fn, err := Metric("")
	require.NoError(t, err)
	require.Equal(t, 1.0, fn("Hello", "hello"))

	for _, name := range []string{MetricJaccard, MetricSorensenDice, MetricJaroWinkler, MetricLevenshtein} {
		fn, err := Metric(name)
		require.NoError(t, err, name)
		require.InDelta(t, 1.0, fn("Hello", "Hello"), 1e-9, name)
		require.Equal(t, 0.0, fn("", "Hello"), name)
	}

	_, err = Metric("soundex")
	require.Error(t, err)
}
