package nbi

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/logistics-simulator/model"
)

// LoadScenarioRequest carries an inline YAML or JSON scenario document.
type LoadScenarioRequest struct {
	Document string
}

// ConfigOverrides replaces selected fields of a scenario's configuration
// for one run.
type ConfigOverrides struct {
	ItemDiscretization     *string  `json:"itemDiscretization"`
	ItemAggregation        *float64 `json:"itemAggregation"`
	ScavengeSpares         *bool    `json:"scavengeSpares"`
	PackingDemandsAdded    *bool    `json:"packingDemandsAdded"`
	DemandsSatisfied       *bool    `json:"demandsSatisfied"`
	EnvironmentConstrained *bool    `json:"environmentConstrained"`
	VolumeConstrained      *bool    `json:"volumeConstrained"`
	DetailedEVA            *bool    `json:"detailedEva"`
}

// SimulateRequest starts a run.
type SimulateRequest struct {
	Config *ConfigOverrides
	// Wait queues behind an active run instead of failing with Aborted.
	Wait bool
}

// RunRequest selects a stored run; an empty RunID means the latest.
type RunRequest struct {
	RunID string
}

// AutoRepairRequest spends a crew-hour budget on one mission.
type AutoRepairRequest struct {
	Mission int
	Budget  float64
}

// ClearRepairsRequest drops one mission's repaired items.
type ClearRepairsRequest struct {
	Mission int
}

// ParseLoadScenarioRequest validates a LoadScenario payload.
func ParseLoadScenarioRequest(in *structpb.Struct) (LoadScenarioRequest, error) {
	doc, err := stringField(in, "document")
	if err != nil {
		return LoadScenarioRequest{}, err
	}
	if strings.TrimSpace(doc) == "" {
		return LoadScenarioRequest{}, fmt.Errorf("%w: document is required", ErrInvalidRequest)
	}
	return LoadScenarioRequest{Document: doc}, nil
}

// ParseSimulateRequest validates a Simulate payload.
func ParseSimulateRequest(in *structpb.Struct) (SimulateRequest, error) {
	var req SimulateRequest
	if v, ok := in.GetFields()["wait"]; ok {
		b, isBool := v.GetKind().(*structpb.Value_BoolValue)
		if !isBool {
			return req, fmt.Errorf("%w: wait must be a boolean", ErrInvalidRequest)
		}
		req.Wait = b.BoolValue
	}
	if v, ok := in.GetFields()["config"]; ok {
		cfg := v.GetStructValue()
		if cfg == nil {
			return req, fmt.Errorf("%w: config must be an object", ErrInvalidRequest)
		}
		raw, err := cfg.MarshalJSON()
		if err != nil {
			return req, fmt.Errorf("%w: config: %v", ErrInvalidRequest, err)
		}
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.DisallowUnknownFields()
		var overrides ConfigOverrides
		if err := dec.Decode(&overrides); err != nil {
			return req, fmt.Errorf("%w: config: %v", ErrInvalidRequest, err)
		}
		req.Config = &overrides
	}
	return req, nil
}

// ParseRunRequest validates a payload that selects a run.
func ParseRunRequest(in *structpb.Struct) (RunRequest, error) {
	if _, ok := in.GetFields()["runId"]; !ok {
		return RunRequest{}, nil
	}
	id, err := stringField(in, "runId")
	if err != nil {
		return RunRequest{}, err
	}
	return RunRequest{RunID: strings.TrimSpace(id)}, nil
}

// ParseAutoRepairRequest validates an AutoRepair payload.
func ParseAutoRepairRequest(in *structpb.Struct) (AutoRepairRequest, error) {
	mission, err := missionField(in)
	if err != nil {
		return AutoRepairRequest{}, err
	}
	budget, err := numberField(in, "budget")
	if err != nil {
		return AutoRepairRequest{}, err
	}
	if budget < 0 || math.IsInf(budget, 0) {
		return AutoRepairRequest{}, fmt.Errorf("%w: budget must be a finite non-negative number of hours", ErrInvalidRequest)
	}
	return AutoRepairRequest{Mission: mission, Budget: budget}, nil
}

// ParseClearRepairsRequest requires a non-negative integer "mission".
func ParseClearRepairsRequest(in *structpb.Struct) (ClearRepairsRequest, error) {
	mission, err := missionField(in)
	if err != nil {
		return ClearRepairsRequest{}, err
	}
	return ClearRepairsRequest{Mission: mission}, nil
}

func missionField(in *structpb.Struct) (int, error) {
	mission, err := numberField(in, "mission")
	if err != nil {
		return 0, err
	}
	if mission < 0 || mission != math.Trunc(mission) || math.IsInf(mission, 0) {
		return 0, fmt.Errorf("%w: mission must be a non-negative integer", ErrInvalidRequest)
	}
	return int(mission), nil
}

// Apply overlays the overrides onto base and validates the result.
func (o *ConfigOverrides) Apply(base model.Config) (model.Config, error) {
	if o == nil {
		return base, nil
	}
	cfg := base
	if o.ItemDiscretization != nil {
		d, err := model.ParseItemDiscretization(*o.ItemDiscretization)
		if err != nil {
			return base, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		cfg.ItemDiscretization = d
	}
	if o.ItemAggregation != nil {
		cfg.ItemAggregation = *o.ItemAggregation
	}
	flags := []struct {
		src *bool
		dst *bool
	}{
		{o.ScavengeSpares, &cfg.ScavengeSpares},
		{o.PackingDemandsAdded, &cfg.PackingDemandsAdded},
		{o.DemandsSatisfied, &cfg.DemandsSatisfied},
		{o.EnvironmentConstrained, &cfg.EnvironmentConstrained},
		{o.VolumeConstrained, &cfg.VolumeConstrained},
		{o.DetailedEVA, &cfg.DetailedEVA},
	}
	for _, f := range flags {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	if err := cfg.Validate(); err != nil {
		return base, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return cfg, nil
}

func stringField(in *structpb.Struct, key string) (string, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidRequest, key)
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidRequest, key)
	}
	return s.StringValue, nil
}

func numberField(in *structpb.Struct, key string) (float64, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidRequest, key)
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber || math.IsNaN(n.NumberValue) {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidRequest, key)
	}
	return n.NumberValue, nil
}

// toStruct converts a JSON-encodable value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return out, nil
}
