// Package types provides common types used throughout imgcodec.
package types

import (
	"fmt"
	"strings"
)

type DataType int

const (
	DataTypeNone = DataType(iota)
	DataTypeUInt8
	DataTypeUInt16
	DataTypeUInt32
	DataTypeUInt64
	DataTypeInt8
	DataTypeInt16
	DataTypeInt32
	DataTypeInt64
	DataTypeFloat16
	DataTypeFloat32
	DataTypeFloat64
	DataTypeBool
	EndOfDataType
)

func (t DataType) String() string {
	switch t {
	case DataTypeNone:
		return "none"
	case DataTypeUInt8:
		return "uint8"
	case DataTypeUInt16:
		return "uint16"
	case DataTypeUInt32:
		return "uint32"
	case DataTypeUInt64:
		return "uint64"
	case DataTypeInt8:
		return "int8"
	case DataTypeInt16:
		return "int16"
	case DataTypeInt32:
		return "int32"
	case DataTypeInt64:
		return "int64"
	case DataTypeFloat16:
		return "float16"
	case DataTypeFloat32:
		return "float32"
	case DataTypeFloat64:
		return "float64"
	case DataTypeBool:
		return "bool"
	}
	return fmt.Sprintf("unknown_%d", int(t))
}

// Size returns the size of a single element in bytes (0 for DataTypeNone).
func (t DataType) Size() int {
	switch t {
	case DataTypeUInt8, DataTypeInt8, DataTypeBool:
		return 1
	case DataTypeUInt16, DataTypeInt16, DataTypeFloat16:
		return 2
	case DataTypeUInt32, DataTypeInt32, DataTypeFloat32:
		return 4
	case DataTypeUInt64, DataTypeInt64, DataTypeFloat64:
		return 8
	}
	return 0
}

func DataTypeFromString(s string) (DataType, error) {
	s = strings.Trim(strings.ToLower(s), " \n\r\t")
	for t := DataTypeNone; t < EndOfDataType; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return DataTypeNone, fmt.Errorf("unknown data type: '%s'", s)
}
