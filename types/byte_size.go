package types

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is an amount of bytes that is (un)marshaled in a human-readable
// form, e.g. "16MiB" or "256".
type ByteSize uint64

func (s ByteSize) String() string {
	return humanize.IBytes(uint64(s))
}

func ParseByteSize(s string) (ByteSize, error) {
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("unable to parse '%s' as a byte size: %w", s, err)
	}
	return ByteSize(v), nil
}

func (s *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return fmt.Errorf("unable to decode the byte size as a string: %w", err)
	}
	v, err := ParseByteSize(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s ByteSize) MarshalYAML() (any, error) {
	return s.String(), nil
}

// Set and Type make ByteSize usable as a pflag.Value.
func (s *ByteSize) Set(str string) error {
	v, err := ParseByteSize(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s ByteSize) Type() string {
	return "ByteSize"
}
