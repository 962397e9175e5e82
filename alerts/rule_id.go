package alerts

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// RuleID is a rule identifier. Flume returns it as a string on some routes and
// as a number on others.
type RuleID string

func (id *RuleID) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(data, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RuleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = RuleID(n.String())
	return nil
}

// Int returns the numeric form, if it has one.
func (id RuleID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}
