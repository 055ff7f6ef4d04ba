package domain

import "time"

// Coordinate WGS84 geographic point
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// InBounds reports whether the coordinate is a plausible WGS84 point.
func (c Coordinate) InBounds() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Pdv point of sale visited by field agents. The route/circuit/zonal
// hierarchy above it is owned by the management layer; the engine only
// needs identity, display name and position.
type Pdv struct {
	ID         string
	Name       string
	Coordinate *Coordinate // nil when the PDV was never geocoded
}

// Geofence explicit fence configured for a PDV. At most one active
// geofence per PDV is meaningful; without one, the engine falls back to
// a default radius centered on the PDV itself.
type Geofence struct {
	ID          string
	PdvID       string
	Center      Coordinate
	RadiusM     float64
	Active      bool
	TriggerType string // "enter"/"exit"/"both" — informational only
}

// SessionStatus working-session lifecycle status
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Open reports whether the status counts against the
// one-open-session-per-agent invariant.
func (s SessionStatus) Open() bool {
	return s == SessionActive || s == SessionPaused
}

// WorkingSession an agent's daily shift.
type WorkingSession struct {
	ID              string
	AgentID         string
	StartedAt       time.Time
	EndedAt         *time.Time
	StartCoordinate Coordinate
	EndCoordinate   *Coordinate
	Status          SessionStatus

	// Aggregates derived once, at session close.
	TotalDistanceKm      float64
	TotalPdvsVisited     int
	TotalDurationMinutes int

	Notes string
}

// VisitStatus visit lifecycle status
type VisitStatus string

const (
	VisitInProgress VisitStatus = "in_progress"
	VisitCompleted  VisitStatus = "completed"
	VisitCancelled  VisitStatus = "cancelled"
)

// Visit a single check-in/check-out cycle against one PDV.
//
// A check-in outside the geofence is recorded with IsValid=false
// rather than rejected, so supervisors can audit attempted-but-invalid
// visits.
type Visit struct {
	ID      string
	AgentID string
	PdvID   string
	PdvName string // joined for client display

	CheckInAt         time.Time
	CheckOutAt        *time.Time
	CheckInCoordinate Coordinate
	DistanceToPdvM    float64
	IsValid           bool
	UsedMockLocation  bool
	Status            VisitStatus
	DurationMinutes   int

	Data VisitData
}

// VisitData flexible per-visit payload. Stored as a JSON column but
// kept structured inside the engine.
type VisitData struct {
	Notes              string              `json:"notes,omitempty"`
	CheckOutNotes      string              `json:"check_out_notes,omitempty"`
	CheckOutCoordinate *Coordinate         `json:"check_out_coordinate,omitempty"`
	Device             *VisitDeviceInfo    `json:"device,omitempty"`
	Geofence           *GeofenceValidation `json:"geofence,omitempty"`
}

// VisitDeviceInfo client device metadata captured at check-in/out.
type VisitDeviceInfo struct {
	UserAgent string `json:"user_agent,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// GeofenceValidation outcome of the fence check at check-in time.
type GeofenceValidation struct {
	WithinFence bool    `json:"within_fence"`
	DistanceM   float64 `json:"distance_m"`
	RadiusM     float64 `json:"radius_m"`
}

// GpsSample one timestamped location report from an agent's device.
// Append-only; never mutated after insert.
type GpsSample struct {
	ID         string
	AgentID    string
	RecordedAt time.Time
	Coordinate Coordinate
	AccuracyM  float64
	SpeedKmh   float64
	Heading    float64
	BatteryPct int
	IsMock     bool
}
