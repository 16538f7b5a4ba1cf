package validators

import (
	"errors"
	"slices"
	"testing"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/action"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/state"
	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

func TestUncertainty(t *testing.T) {
	u, err := NewUncertainty()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(u.RequiredSensors(), DefaultRequiredSensors) {
		t.Fatalf("required = %v", u.RequiredSensors())
	}

	tests := []struct {
		name   string
		health map[string]bool
		sensor string
	}{
		{"no health reported", nil, ""},
		{"all healthy", map[string]bool{"lidar": true, "imu": true}, ""},
		{"required sensor absent", map[string]bool{"camera": false}, ""},
		{"lidar down", map[string]bool{"lidar": false}, "lidar"},
		{"imu down", map[string]bool{"lidar": true, "imu": false}, "imu"},
		{"both down reports first", map[string]bool{"lidar": false, "imu": false}, "lidar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := u.Check(state.New(nil, nil, tt.health), action.New("t", action.TaskCommand, nil, ""))
			if err != nil {
				t.Fatal(err)
			}
			if tt.sensor == "" {
				if v != nil {
					t.Fatalf("unexpected violation %+v", v)
				}
				return
			}
			if v == nil || v.RuleID != supervisor.RuleSensorHealth {
				t.Fatalf("violation = %+v, want UNCERT_001", v)
			}
			if v.Context["sensor"] != tt.sensor {
				t.Fatalf("sensor = %v, want %s", v.Context["sensor"], tt.sensor)
			}
		})
	}
}

func TestNewUncertainty_EmptyName(t *testing.T) {
	if _, err := NewUncertainty("lidar", ""); !errors.Is(err, ErrEmptySensorName) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewUncertainty_CopiesInput(t *testing.T) {
	sensors := []string{"gps"}
	u, _ := NewUncertainty(sensors...)
	sensors[0] = "lidar"
	if u.RequiredSensors()[0] != "gps" {
		t.Fatal("constructor kept caller slice")
	}
}
