package types

import (
	"fmt"
	"strings"
)

// ParamItem is a backend-specific decoder parameter given by name, see
// codec.Decoder.SetParam.
type ParamItem struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type ParamItems []ParamItem

// Deduplicate keeps only the last value of every key, ordered by the
// position of that last value.
func (s ParamItems) Deduplicate() ParamItems {
	last := map[string]int{}
	for idx, item := range s {
		last[item.Key] = idx
	}
	result := make(ParamItems, 0, len(last))
	for idx, item := range s {
		if last[item.Key] == idx {
			result = append(result, item)
		}
	}
	return result
}

func (s ParamItems) String() string {
	parts := make([]string, 0, len(s))
	for _, item := range s {
		parts = append(parts, item.Key+"="+item.Value)
	}
	return strings.Join(parts, ",")
}

// Set and Type make ParamItems usable as a repeatable pflag.Value of
// "key=value" pairs.
func (s *ParamItems) Set(str string) error {
	key, value, ok := strings.Cut(str, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected 'key=value', got '%s'", str)
	}
	*s = append(*s, ParamItem{Key: key, Value: value})
	return nil
}

func (s ParamItems) Type() string {
	return "key=value"
}
