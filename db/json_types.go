package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// UintSliceJSON stores a []uint as a JSON text column. Gorm's struct tag
// serializer isn't pulled in as a dependency for one column shape each,
// so these two small Scan/Value pairs carry the same idea the teacher
// expresses with datatypes.JSON in its larger schema.
type UintSliceJSON []uint

func (s UintSliceJSON) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]uint(s))
	return string(b), err
}

func (s *UintSliceJSON) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for UintSliceJSON: %T", value)
	}
	if len(bytes) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// StringSliceJSON stores a []string as a JSON text column.
type StringSliceJSON []string

func (s StringSliceJSON) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	return string(b), err
}

func (s *StringSliceJSON) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringSliceJSON: %T", value)
	}
	if len(bytes) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(bytes, s)
}
