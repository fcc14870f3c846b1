package types

type OptionCommons struct{}

func (OptionCommons) option() {}

// Option is a marker interface for functional options; embed OptionCommons
// to implement it.
type Option interface {
	option()
}

type Options []Option

// OptionLatest returns the last option of type T, if any.
func OptionLatest[T Option](s Options) (ret T, ok bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if v, ok := s[i].(T); ok {
			return v, true
		}
	}
	return
}
