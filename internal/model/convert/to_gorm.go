// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/foosbot/goalkeeper/internal/geo"
	"github.com/foosbot/goalkeeper/internal/model"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// toJSON marshals v for a datatypes.JSON column, falling back to empty.
func toJSON(v any, empty string) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON(empty)
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
// A zero EndedAt is stored as NULL.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
		ID:        s.ID,
		StartedAt: s.StartedAt,
		EndedAt:   sql.NullTime{Time: s.EndedAt, Valid: !s.EndedAt.IsZero()},
		Reason:    s.Reason,
	}
}

// CoreToBallPosition converts a core.BallPosition to a GORM model.BallPosition.
func CoreToBallPosition(p core.BallPosition) model.BallPosition {
	return model.BallPosition{
		SessionID: p.SessionID,
		Time:      p.Time,
		Frame:     p.Frame,
		X:         p.Position.X,
		Y:         p.Position.Y,
	}
}

// CoreToPrediction converts a core.Prediction to a GORM model.Prediction.
func CoreToPrediction(p core.Prediction) model.Prediction {
	waypoints := p.Path
	if waypoints == nil {
		waypoints = core.Trajectory{}
	}
	return model.Prediction{
		SessionID:  p.SessionID,
		Time:       p.Time,
		Frame:      p.Frame,
		Kind:       string(p.Kind),
		Y:          p.Y,
		Reused:     p.Reused,
		Path:       geo.LineString(p.Path).AsGeometry(),
		PathLength: geo.Length(p.Path),
		Waypoints:  toJSON(waypoints, "[]"),
	}
}

// CoreToStrike converts a core.StrikeEvent to a GORM model.Strike.
func CoreToStrike(e core.StrikeEvent) model.Strike {
	return model.Strike{
		SessionID:  e.SessionID,
		Time:       e.Time,
		Kind:       string(e.Kind),
		Source:     e.Source,
		Executed:   e.Executed,
		DurationMs: float32(e.Duration.Seconds() * 1000),
	}
}

// CoreToStatusSnapshot converts a core.StatusSnapshot to a GORM model.StatusSnapshot.
func CoreToStatusSnapshot(s core.StatusSnapshot) model.StatusSnapshot {
	depths := s.MailboxDepths
	if depths == nil {
		depths = map[string]int{}
	}
	return model.StatusSnapshot{
		SessionID:     s.SessionID,
		Time:          s.Time,
		State:         s.State,
		Fps:           s.Fps,
		MailboxDepths: toJSON(depths, "{}"),
		Encoders: model.Encoders{
			Linear:      s.Encoders.Linear,
			Rotational:  s.Encoders.Rotational,
			LinearMM:    s.Encoders.LinearMM,
			RotationDeg: s.Encoders.RotationDeg,
		},
		StrikesAllowed: s.StrikesAllowed,
		StrikesDropped: s.StrikesDropped,
	}
}
