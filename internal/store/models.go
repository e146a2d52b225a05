package store

import (
	"time"

	"gorm.io/datatypes"
)

// Run is one persisted simulation run.
type Run struct {
	ID             string         `json:"id" gorm:"primaryKey;size:36"`
	Scenario       string         `json:"scenario" gorm:"size:255;index:idx_run_scenario"`
	StartedAt      time.Time      `json:"startedAt" gorm:"index:idx_run_started_at"`
	ElapsedMS      int64          `json:"elapsedMs"`
	FinalTime      float64        `json:"finalTime"`
	EventsReplayed int            `json:"eventsReplayed"`
	DemandMass     float64        `json:"demandMass"`
	Config         datatypes.JSON `json:"config"`
	EventsByKind   datatypes.JSON `json:"eventsByKind"`

	States    []StateRow    `json:"states,omitempty" gorm:"foreignKey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Demands   []DemandRow   `json:"demands,omitempty" gorm:"foreignKey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Issues    []IssueRow    `json:"issues,omitempty" gorm:"foreignKey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Scavenges []ScavengeRow `json:"scavenges,omitempty" gorm:"foreignKey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Edges     []EdgeRow     `json:"edges,omitempty" gorm:"foreignKey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Run) TableName() string { return "runs" }

// StateRow is one location snapshot.
type StateRow struct {
	ID        uint           `json:"-" gorm:"primarykey;autoIncrement;"`
	RunID     string         `json:"runId" gorm:"size:36;index:idx_state_run_seq,priority:1"`
	Seq       int            `json:"seq" gorm:"index:idx_state_run_seq,priority:2"`
	Time      float64        `json:"time"`
	Locations datatypes.JSON `json:"locations"`
	Parents   datatypes.JSON `json:"parents"`
}

func (*StateRow) TableName() string { return "run_states" }

// DemandRow is one unmet demand record.
type DemandRow struct {
	ID       uint           `json:"-" gorm:"primarykey;autoIncrement;"`
	RunID    string         `json:"runId" gorm:"size:36;index:idx_demand_run_id"`
	Seq      int            `json:"seq"`
	Time     float64        `json:"time"`
	Location int            `json:"location" gorm:"index:idx_demand_location"`
	Element  int            `json:"element"`
	Event    string         `json:"event" gorm:"size:255"`
	Mass     float64        `json:"mass"`
	Demands  datatypes.JSON `json:"demands"`
}

func (*DemandRow) TableName() string { return "run_demands" }

// Issue severities.
const (
	SeveritySpatial = "spatial"
	SeverityWarning = "warning"
)

// IssueRow is a spatial error or a warning.
type IssueRow struct {
	ID       uint    `json:"-" gorm:"primarykey;autoIncrement;"`
	RunID    string  `json:"runId" gorm:"size:36;index:idx_issue_run_id"`
	Seq      int     `json:"seq"`
	Severity string  `json:"severity" gorm:"size:16"`
	Time     float64 `json:"time"`
	Event    string  `json:"event" gorm:"size:255"`
	Kind     string  `json:"kind" gorm:"size:64"`
	Message  string  `json:"message" gorm:"size:2000"`
}

func (*IssueRow) TableName() string { return "run_issues" }

// ScavengeRow is one scavenged part.
type ScavengeRow struct {
	ID       uint           `json:"-" gorm:"primarykey;autoIncrement;"`
	RunID    string         `json:"runId" gorm:"size:36;index:idx_scavenge_run_id"`
	Seq      int            `json:"seq"`
	Time     float64        `json:"time"`
	Location int            `json:"location"`
	Source   int            `json:"source"`
	Consumer int            `json:"consumer"`
	Amount   float64        `json:"amount"`
	Part     datatypes.JSON `json:"part"`
}

func (*ScavengeRow) TableName() string { return "run_scavenges" }

// EdgeRow is one supply edge.
type EdgeRow struct {
	ID           uint           `json:"-" gorm:"primarykey;autoIncrement;"`
	RunID        string         `json:"runId" gorm:"size:36;index:idx_edge_run_id"`
	Seq          int            `json:"seq"`
	Edge         int            `json:"edge"`
	Origin       int            `json:"origin"`
	Destination  int            `json:"destination"`
	Reversed     bool           `json:"reversed"`
	Start        float64        `json:"start"`
	End          float64        `json:"end"`
	Mission      int            `json:"mission"`
	Mass         float64        `json:"mass"`
	MaxCargoMass float64        `json:"maxCargoMass"`
	CargoMass    float64        `json:"cargoMass"`
	Crew         int            `json:"crew"`
	Carriers     datatypes.JSON `json:"carriers"`
}

func (*EdgeRow) TableName() string { return "run_supply_edges" }

// Models lists every table managed by the store.
var Models = []any{
	&Run{},
	&StateRow{},
	&DemandRow{},
	&IssueRow{},
	&ScavengeRow{},
	&EdgeRow{},
}
