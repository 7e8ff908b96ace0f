// Package config holds the value types shared by every component's
// configuration. Component configs themselves live with their components.
//
// Configs follow one pattern: DefaultConfig returns the defaults, JSON is
// unmarshaled into a zero Config, and Merge layers the loaded values over the
// defaults. Merge copies non-empty strings, positive numbers and durations,
// and non-nil pointers.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that reads and writes JSON as a Go duration
// string ("250ms", "10s"). Plain numbers are accepted as nanoseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v))
		return nil
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", data)
	}
}
