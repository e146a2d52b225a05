package nbi

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/logistics-simulator/model"
)

func TestParseSimulateRequest(t *testing.T) {
	req, err := ParseSimulateRequest(mustStruct(t, map[string]any{
		"wait":   true,
		"config": map[string]any{"itemDiscretization": "by_location", "scavengeSpares": true},
	}))
	if err != nil {
		t.Fatalf("ParseSimulateRequest err = %v, want nil", err)
	}
	if !req.Wait || req.Config == nil || req.Config.ScavengeSpares == nil || !*req.Config.ScavengeSpares {
		t.Fatalf("ParseSimulateRequest = %+v", req)
	}
	if req.Config.ItemAggregation != nil {
		t.Fatalf("ItemAggregation = %v, want unset", *req.Config.ItemAggregation)
	}

	tests := []struct {
		name string
		in   map[string]any
	}{
		{name: "wait not bool", in: map[string]any{"wait": "yes"}},
		{name: "config not object", in: map[string]any{"config": 3.0}},
		{name: "unknown config field", in: map[string]any{"config": map[string]any{"speed": 1.0}}},
		{name: "mistyped config field", in: map[string]any{"config": map[string]any{"scavengeSpares": "on"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseSimulateRequest(mustStruct(t, tc.in)); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("ParseSimulateRequest(%s) err = %v, want ErrInvalidRequest", tc.name, err)
			}
		})
	}
}

func TestConfigOverridesApply(t *testing.T) {
	base := model.DefaultConfig()

	var none *ConfigOverrides
	if got, err := none.Apply(base); err != nil || got != base {
		t.Fatalf("nil Apply = %+v, %v; want base", got, err)
	}

	disc := "element"
	agg := 0.25
	off := false
	got, err := (&ConfigOverrides{ItemDiscretization: &disc, ItemAggregation: &agg, DetailedEVA: &off}).Apply(base)
	if err != nil {
		t.Fatalf("Apply err = %v", err)
	}
	if got.ItemDiscretization != model.DiscretizeByElement || got.ItemAggregation != 0.25 || got.DetailedEVA {
		t.Fatalf("Apply = %+v", got)
	}
	if got.TimePrecision != base.TimePrecision {
		t.Fatalf("TimePrecision = %v, want %v untouched", got.TimePrecision, base.TimePrecision)
	}

	bad := 1.5
	if _, err := (&ConfigOverrides{ItemAggregation: &bad}).Apply(base); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Apply(aggregation 1.5) err = %v, want ErrInvalidRequest", err)
	}
	unknown := "galaxy"
	if _, err := (&ConfigOverrides{ItemDiscretization: &unknown}).Apply(base); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Apply(discretization galaxy) err = %v, want ErrInvalidRequest", err)
	}
}

func TestParseRunRequest(t *testing.T) {
	req, err := ParseRunRequest(mustStruct(t, map[string]any{}))
	if err != nil || req.RunID != "" {
		t.Fatalf("ParseRunRequest(empty) = %+v, %v; want latest", req, err)
	}
	req, err = ParseRunRequest(mustStruct(t, map[string]any{"runId": " abc "}))
	if err != nil || req.RunID != "abc" {
		t.Fatalf("ParseRunRequest = %+v, %v; want abc", req, err)
	}
	if _, err := ParseRunRequest(mustStruct(t, map[string]any{"runId": 7.0})); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("ParseRunRequest(number) err = %v, want ErrInvalidRequest", err)
	}
}

func TestParseRepairRequests(t *testing.T) {
	req, err := ParseAutoRepairRequest(mustStruct(t, map[string]any{"mission": 2.0, "budget": 12.5}))
	if err != nil || req.Mission != 2 || req.Budget != 12.5 {
		t.Fatalf("ParseAutoRepairRequest = %+v, %v", req, err)
	}
	cr, err := ParseClearRepairsRequest(mustStruct(t, map[string]any{"mission": 1.0}))
	if err != nil || cr.Mission != 1 {
		t.Fatalf("ParseClearRepairsRequest = %+v, %v", cr, err)
	}

	tests := []struct {
		name string
		in   map[string]any
	}{
		{name: "missing mission", in: map[string]any{"budget": 1.0}},
		{name: "fractional mission", in: map[string]any{"mission": 1.5, "budget": 1.0}},
		{name: "negative mission", in: map[string]any{"mission": -1.0, "budget": 1.0}},
		{name: "infinite mission", in: map[string]any{"mission": math.Inf(1), "budget": 1.0}},
		{name: "missing budget", in: map[string]any{"mission": 0.0}},
		{name: "negative budget", in: map[string]any{"mission": 0.0, "budget": -2.0}},
		{name: "infinite budget", in: map[string]any{"mission": 0.0, "budget": math.Inf(1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseAutoRepairRequest(mustStruct(t, tc.in)); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("ParseAutoRepairRequest(%s) err = %v, want ErrInvalidRequest", tc.name, err)
			}
		})
	}
}
