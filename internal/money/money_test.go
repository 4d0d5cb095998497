package money

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_RejectsNonFinite(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"NaN", "Infinity", "-Inf", "abc", ""} {
		_, err := Parse(in)
		require.Error(t, err, in)
	}
	_, err := FromFloat(math.NaN())
	require.ErrorIs(t, err, ErrNotFinite)
	_, err = FromFloat(math.Inf(1))
	require.ErrorIs(t, err, ErrNotFinite)
}

func TestWireString_TwoDigitsHalfUp(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"5000":      "5000.00",
		"5000.5":    "5000.50",
		"0.005":     "0.01",
		"2.675":     "2.68",
		"1.004":     "1.00",
		"1234567.8": "1234567.80",
		"-100":      "-100.00",
	}
	for in, want := range cases {
		require.Equal(t, want, MustParse(in).WireString(), in)
	}
}

func TestWireString_NoCompounding(t *testing.T) {
	t.Parallel()

	a := MustParse("10.125")
	require.Equal(t, "10.13", a.WireString())
	// the source value is untouched; rounding happens on every render from the exact value
	require.Equal(t, "10.125", a.String())
}

func TestCompareAndSign(t *testing.T) {
	t.Parallel()

	var zero Amount
	require.False(t, zero.IsSet())
	require.Equal(t, 0, zero.Sign())
	require.True(t, MustParse("0.01").IsPositive())
	require.False(t, MustParse("-1").IsPositive())
	require.Equal(t, -1, MustParse("599.99").Cmp(MustParse("600")))
	require.InDelta(t, 0.25, MustParse("250").Ratio(MustParse("1000")), 1e-9)
	require.Equal(t, 0.0, MustParse("1").Ratio(zero))
}

func TestJSON(t *testing.T) {
	t.Parallel()

	var v struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
		C Amount `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":5000.5,"b":"12.34","c":null}`), &v))
	require.Equal(t, "5000.5", v.A.String())
	require.Equal(t, "12.34", v.B.String())
	require.False(t, v.C.IsSet())

	out, err := json.Marshal(struct {
		A Amount `json:"a"`
	}{A: MustParse("7.10")})
	require.NoError(t, err)
	require.JSONEq(t, `{"a":7.10}`, string(out))
}
