package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a list of strings stored as a JSON array in a TEXT column.
// It implements the sql.Scanner and driver.Valuer interfaces.
type StringList []string

// Scan implements the sql.Scanner interface, allowing StringList to be read from the database.
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = StringList{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T", v)
	}

	if len(raw) == 0 {
		*s = StringList{}
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("unmarshalling string list : %w", err)
	}
	if list == nil {
		list = []string{}
	}
	*s = list
	return nil
}

// Value implements the driver.Valuer interface, allowing StringList to be written to the database.
func (s StringList) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal([]string(s))
	if err != nil {
		return nil, fmt.Errorf("marshalling string list : %w", err)
	}
	return string(encoded), nil
}
