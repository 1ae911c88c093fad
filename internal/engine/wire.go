package engine

import (
	"time"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/catalog"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/propagation"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/risk"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/tle"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/transform"
)

// NoPosition fills all three components of a member with no position at an
// instant, so buffers stay aligned with the catalog.
const NoPosition = 99999

// RequestType names an engine request.
type RequestType string

const (
	RefreshCatalog RequestType = "REFRESH_CATALOG"
	Propagate      RequestType = "PROPAGATE"
	EvaluateRisk   RequestType = "EVALUATE_RISK"
)

// ResponseType names an engine response.
type ResponseType string

const (
	CatalogReady ResponseType = "READY"
	Positions    ResponseType = "POSITIONS"
	RiskResult   ResponseType = "RISK_RESULT"
)

// Frame selects the frame of a position buffer.
type Frame string

const (
	FrameECI Frame = "eci"
	FrameECF Frame = "ecf"
)

// Request is one host message. Only the fields of the named type are read.
type Request struct {
	Type RequestType `json:"type"`

	// PROPAGATE; a missing instant means now.
	InstantMs *int64 `json:"instantMs,omitempty"`
	Frame     Frame  `json:"frame,omitempty"`

	// EVALUATE_RISK
	LaunchLatitudeDeg  *float64 `json:"launchLatitudeDeg,omitempty"`
	LaunchLongitudeDeg *float64 `json:"launchLongitudeDeg,omitempty"`
	LaunchEpochMs      *int64   `json:"launchEpochMs,omitempty"`
}

// Response answers exactly one Request. One payload is set, matching Type.
type Response struct {
	Type      ResponseType     `json:"type"`
	Catalog   *CatalogPayload  `json:"catalog,omitempty"`
	Positions *PositionPayload `json:"positions,omitempty"`
	Risk      *RiskPayload     `json:"risk,omitempty"`
}

// CatalogPayload describes the live catalog. ColorBuffer and Metadata are in
// catalog order; position buffers use the same order.
type CatalogPayload struct {
	Count         int                  `json:"count"`
	ColorBuffer   []float32            `json:"colorBuffer"`
	Metadata      []catalog.ObjectMeta `json:"metadata"`
	Dropped       int                  `json:"dropped"`
	FailedSources []tle.FailedSource   `json:"failedSources"`
	FetchedAt     time.Time            `json:"fetchedAt"`
}

// PositionPayload holds 3 floats per catalog member, in kilometers, with
// NoPosition for members that failed to propagate.
type PositionPayload struct {
	InstantMs      int64     `json:"instantMs"`
	Frame          Frame     `json:"frame"`
	PositionBuffer []float32 `json:"positionBuffer"`
	SiderealAngle  float64   `json:"siderealAngle"`
	Failed         int       `json:"failed"`
}

// RiskPayload is a launch evaluation: events and the full 1 s trajectory in ECI km.
type RiskPayload struct {
	RiskEvents []RiskEvent  `json:"riskEvents"`
	Trajectory [][3]float64 `json:"trajectory"`
}

// RiskEvent is one close approach.
type RiskEvent struct {
	TimeOffsetSec      int        `json:"timeOffsetSec"`
	DistanceKm         float64    `json:"distanceKm"`
	ObjectName         string     `json:"objectName"`
	ObjectID           string     `json:"objectId"`
	VehiclePositionEci [3]float64 `json:"vehiclePositionEci"`
	ObjectPositionEci  [3]float64 `json:"objectPositionEci"`
}

func catalogPayload(c *catalog.Catalog, failed []tle.FailedSource) *CatalogPayload {
	s := catalog.Summarize(c)
	if failed == nil {
		failed = []tle.FailedSource{}
	}
	return &CatalogPayload{
		Count:         s.Count,
		ColorBuffer:   s.ColorBuffer,
		Metadata:      s.Metadata,
		Dropped:       c.Dropped(),
		FailedSources: failed,
		FetchedAt:     c.FetchedAt(),
	}
}

// EncodePositions flattens a snapshot into a float32 buffer in the given frame.
func EncodePositions(snap *propagation.Snapshot, frame Frame) []float32 {
	buf := make([]float32, len(snap.Positions)*3)
	for i, p := range snap.Positions {
		if !p.OK {
			buf[i*3], buf[i*3+1], buf[i*3+2] = NoPosition, NoPosition, NoPosition
			continue
		}
		v := p.ECI
		if frame == FrameECF {
			v = transform.ECIToECF(v, snap.SiderealAngle)
		}
		buf[i*3], buf[i*3+1], buf[i*3+2] = float32(v.X), float32(v.Y), float32(v.Z)
	}
	return buf
}

func positionPayload(snap *propagation.Snapshot, frame Frame) *PositionPayload {
	return &PositionPayload{
		InstantMs:      snap.Instant.UnixMilli(),
		Frame:          frame,
		PositionBuffer: EncodePositions(snap, frame),
		SiderealAngle:  snap.SiderealAngle,
		Failed:         snap.Failed,
	}
}

func riskPayload(r *risk.Report) *RiskPayload {
	p := &RiskPayload{
		RiskEvents: make([]RiskEvent, len(r.Events)),
		Trajectory: make([][3]float64, len(r.Trajectory)),
	}
	for i, ev := range r.Events {
		p.RiskEvents[i] = RiskEvent{
			TimeOffsetSec:      ev.Offset,
			DistanceKm:         ev.DistanceKm,
			ObjectName:         ev.ObjectName,
			ObjectID:           ev.ObjectID,
			VehiclePositionEci: [3]float64{ev.VehicleECI.X, ev.VehicleECI.Y, ev.VehicleECI.Z},
			ObjectPositionEci:  [3]float64{ev.ObjectECI.X, ev.ObjectECI.Y, ev.ObjectECI.Z},
		}
	}
	for i, s := range r.Trajectory {
		p.Trajectory[i] = [3]float64{s.ECI.X, s.ECI.Y, s.ECI.Z}
	}
	return p
}
