package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/foosbot/goalkeeper/internal/geo"
	"github.com/foosbot/goalkeeper/internal/model"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// SessionToCore converts a GORM model.Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	out := core.Session{
		ID:        s.ID,
		StartedAt: s.StartedAt,
		Reason:    s.Reason,
	}
	if s.EndedAt.Valid {
		out.EndedAt = s.EndedAt.Time
	}
	return out
}

// BallPositionToCore converts a GORM model.BallPosition to a core.BallPosition.
func BallPositionToCore(p model.BallPosition) core.BallPosition {
	return core.BallPosition{
		SessionID: p.SessionID,
		Time:      p.Time,
		Frame:     p.Frame,
		Position:  core.Point{X: p.X, Y: p.Y},
	}
}

// PredictionToCore converts a GORM model.Prediction to a core.Prediction.
// The path is read from the geometry column and falls back to the JSON
// waypoints when the geometry is empty.
func PredictionToCore(p model.Prediction) (core.Prediction, error) {
	path, err := geo.FromGeometry(p.Path)
	if err != nil {
		return core.Prediction{}, fmt.Errorf("prediction %d path: %w", p.ID, err)
	}
	if path == nil && len(p.Waypoints) > 0 {
		var waypoints core.Trajectory
		if err := json.Unmarshal(p.Waypoints, &waypoints); err != nil {
			return core.Prediction{}, fmt.Errorf("prediction %d waypoints: %w", p.ID, err)
		}
		if len(waypoints) > 0 {
			path = waypoints
		}
	}
	return core.Prediction{
		SessionID: p.SessionID,
		Time:      p.Time,
		Frame:     p.Frame,
		Kind:      core.PredictionKind(p.Kind),
		Y:         p.Y,
		Path:      path,
		Reused:    p.Reused,
	}, nil
}

// StrikeToCore converts a GORM model.Strike to a core.StrikeEvent.
func StrikeToCore(s model.Strike) core.StrikeEvent {
	return core.StrikeEvent{
		SessionID: s.SessionID,
		Time:      s.Time,
		Kind:      core.StrikeKind(s.Kind),
		Source:    s.Source,
		Executed:  s.Executed,
		Duration:  time.Duration(float64(s.DurationMs) * float64(time.Millisecond)),
	}
}
