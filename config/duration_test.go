package config_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tailored-agentic-units/drawbridge/config"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"string", `"250ms"`, 250 * time.Millisecond, false},
		{"compound string", `"1m30s"`, 90 * time.Second, false},
		{"nanoseconds", `1000000`, time.Millisecond, false},
		{"null", `null`, 0, false},
		{"invalid string", `"soon"`, 0, true},
		{"bool", `true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d config.Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if d.Std() != tt.want {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.input, d.Std(), tt.want)
			}
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Timeout config.Duration `json:"timeout"`
	}{config.Duration(2 * time.Second)})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	if got, want := string(data), `{"timeout":"2s"}`; got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}
