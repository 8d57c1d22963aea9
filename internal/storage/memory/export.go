package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/foosbot/goalkeeper/internal/geo"
)

// ExportVersion identifies the layout of the JSON export.
const ExportVersion = 1

// SessionExport is the root JSON structure
type SessionExport struct {
	Version     int              `json:"version"`
	SessionID   string           `json:"sessionId"`
	StartedAt   string           `json:"startedAt"`
	EndedAt     string           `json:"endedAt"`
	Reason      string           `json:"reason"`
	Positions   [][]any          `json:"positions"` // [frame, offsetMs, x, y]
	Predictions []PredictionJSON `json:"predictions"`
	Strikes     []StrikeJSON     `json:"strikes"`
	Status      []StatusJSON     `json:"status"`
}

// PredictionJSON is an accepted prediction
type PredictionJSON struct {
	Frame    uint64      `json:"frame"`
	OffsetMs int64       `json:"offsetMs"`
	Kind     string      `json:"kind"`
	Y        float64     `json:"y"`
	Reused   bool        `json:"reused,omitempty"`
	Path     [][]float64 `json:"path,omitempty"`
	Bounces  int         `json:"bounces,omitempty"`
}

// StrikeJSON is a strike request
type StrikeJSON struct {
	OffsetMs   int64   `json:"offsetMs"`
	Kind       string  `json:"kind"`
	Source     string  `json:"source"`
	Executed   bool    `json:"executed"`
	DurationMs float64 `json:"durationMs"`
}

// StatusJSON is a status snapshot
type StatusJSON struct {
	OffsetMs       int64          `json:"offsetMs"`
	State          string         `json:"state"`
	Fps            int            `json:"fps"`
	MailboxDepths  map[string]int `json:"mailboxDepths,omitempty"`
	Encoders       []float64      `json:"encoders"` // [linear, rotational, linearMm, rotationDeg]
	StrikesAllowed uint64         `json:"strikesAllowed"`
	StrikesDropped uint64         `json:"strikesDropped"`
}

// exportJSON writes the session data to a (optionally gzipped) JSON file.
// Callers hold mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	timestamp := b.session.StartedAt.UTC().Format("20060102_150405")
	id := b.session.ID
	if len(id) > 8 {
		id = id[:8]
	}

	filename := fmt.Sprintf("goalkeeper_%s_%s.json", timestamp, id)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	start := b.session.StartedAt
	offset := func(t time.Time) int64 {
		return t.Sub(start).Milliseconds()
	}

	export := SessionExport{
		Version:     ExportVersion,
		SessionID:   b.session.ID,
		StartedAt:   start.UTC().Format(time.RFC3339Nano),
		Reason:      b.session.Reason,
		Positions:   make([][]any, 0, len(b.positions)),
		Predictions: make([]PredictionJSON, 0, len(b.predictions)),
		Strikes:     make([]StrikeJSON, 0, len(b.strikes)),
		Status:      make([]StatusJSON, 0, len(b.status)),
	}
	if !b.session.EndedAt.IsZero() {
		export.EndedAt = b.session.EndedAt.UTC().Format(time.RFC3339Nano)
	}

	for _, p := range b.positions {
		export.Positions = append(export.Positions, []any{p.Frame, offset(p.Time), p.Position.X, p.Position.Y})
	}

	for _, p := range b.predictions {
		pj := PredictionJSON{
			Frame:    p.Frame,
			OffsetMs: offset(p.Time),
			Kind:     string(p.Kind),
			Y:        p.Y,
			Reused:   p.Reused,
			Bounces:  geo.Bounces(p.Path),
		}
		for _, wp := range p.Path {
			pj.Path = append(pj.Path, []float64{wp.X, wp.Y})
		}
		export.Predictions = append(export.Predictions, pj)
	}

	for _, s := range b.strikes {
		export.Strikes = append(export.Strikes, StrikeJSON{
			OffsetMs:   offset(s.Time),
			Kind:       string(s.Kind),
			Source:     s.Source,
			Executed:   s.Executed,
			DurationMs: float64(s.Duration.Microseconds()) / 1000,
		})
	}

	for _, s := range b.status {
		export.Status = append(export.Status, StatusJSON{
			OffsetMs:       offset(s.Time),
			State:          s.State,
			Fps:            s.Fps,
			MailboxDepths:  s.MailboxDepths,
			Encoders:       []float64{float64(s.Encoders.Linear), float64(s.Encoders.Rotational), s.Encoders.LinearMM, s.Encoders.RotationDeg},
			StrikesAllowed: s.StrikesAllowed,
			StrikesDropped: s.StrikesDropped,
		})
	}

	return export
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
