package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParamItemsDeduplicate(t *testing.T) {
	require.Equal(
		t,
		ParamItems{
			{Key: "b", Value: "0"},
			{Key: "a", Value: "1"},
		},
		ParamItems{
			{Key: "a", Value: "0"},
			{Key: "b", Value: "0"},
			{Key: "a", Value: "1"},
		}.Deduplicate(),
	)
}

func TestParamItemsSet(t *testing.T) {
	var s ParamItems
	require.NoError(t, s.Set("a=1"))
	require.NoError(t, s.Set("b=x=y"))
	require.NoError(t, s.Set("c="))
	require.Error(t, s.Set("novalue"))
	require.Error(t, s.Set("=1"))
	require.Equal(t, ParamItems{{"a", "1"}, {"b", "x=y"}, {"c", ""}}, s)
	require.Equal(t, "a=1,b=x=y,c=", s.String())
}
