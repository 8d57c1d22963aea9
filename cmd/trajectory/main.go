// Command trajectory inspects ball trajectories offline: it replays a
// position log through the predictor, or prints the predictions stored in
// a SQLite recording.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gorm.io/gorm"

	"github.com/foosbot/goalkeeper/internal/calibration"
	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/internal/database"
	"github.com/foosbot/goalkeeper/internal/geo"
	"github.com/foosbot/goalkeeper/internal/logging"
	"github.com/foosbot/goalkeeper/internal/model"
	"github.com/foosbot/goalkeeper/internal/model/convert"
	"github.com/foosbot/goalkeeper/internal/prediction"
	"github.com/foosbot/goalkeeper/internal/vision"
	"github.com/foosbot/goalkeeper/pkg/core"
)

const usage = `Usage:
  trajectory replay <positions.txt> <calibration.yaml>
  trajectory sessions <recording.db>
  trajectory show <recording.db> [session-id]
`

// ReplaySummary counts the outcomes of a replay.
type ReplaySummary struct {
	Frames    int
	Missing   int
	Crossings int
	Direct    int
	Reused    int
	Strikes   int
}

// replay feeds every line of r to a fresh predictor and writes one row per
// frame that produced an estimate.
func replay(r io.Reader, params prediction.Params, w io.Writer) (ReplaySummary, error) {
	var sum ReplaySummary
	p := prediction.New(params)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tKIND\tY\tADVICE\tBOUNCES\tPATH")

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		sum.Frames++
		obs, err := vision.ParsePosition(sc.Text())
		if err != nil {
			return sum, fmt.Errorf("line %d: %w", sum.Frames, err)
		}
		if !obs.Detected {
			sum.Missing++
		}
		p.Add(obs)

		est, ok := p.Estimate()
		if !ok {
			continue
		}
		switch {
		case est.Reused:
			sum.Reused++
		case est.Kind == core.PredictionCrossing:
			sum.Crossings++
		default:
			sum.Direct++
		}
		if est.Advice != prediction.AdviceNone {
			sum.Strikes++
		}

		path := "-"
		if len(est.Path) > 0 {
			path = geo.WKT(est.Path)
		}
		kind := string(est.Kind)
		if est.Reused {
			kind += "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%s\t%d\t%s\n", sum.Frames, kind, est.Y, est.Advice, geo.Bounces(est.Path), path)
	}
	if err := sc.Err(); err != nil {
		return sum, err
	}
	return sum, tw.Flush()
}

// listSessions prints every recorded session.
func listSessions(db *gorm.DB, w io.Writer) error {
	var rows []model.Session
	if err := db.Order("started_at").Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to query sessions: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tPREDICTIONS\tREASON")
	for _, row := range rows {
		var count int64
		db.Model(&model.Prediction{}).Where("session_id = ?", row.ID).Count(&count)

		s := convert.SessionToCore(row)
		duration := "running"
		if !s.EndedAt.IsZero() {
			duration = s.EndedAt.Sub(s.StartedAt).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), duration, count, s.Reason)
	}
	return tw.Flush()
}

// showPredictions prints the recorded predictions, optionally of one
// session, with their simulated paths.
func showPredictions(db *gorm.DB, sessionID string, w io.Writer) (int, error) {
	q := db.Order("frame")
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	var rows []model.Prediction
	if err := q.Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to query predictions: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tKIND\tY\tLENGTH\tBOUNCES\tPATH")
	for _, row := range rows {
		pred, err := convert.PredictionToCore(row)
		if err != nil {
			return 0, err
		}
		path := "-"
		if len(pred.Path) > 0 {
			path = geo.WKT(pred.Path)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.1f\t%d\t%s\n",
			pred.Frame, pred.Kind, pred.Y, geo.Length(pred.Path), geo.Bounces(pred.Path), path)
	}
	return len(rows), tw.Flush()
}

func loadParams(path string) (prediction.Params, error) {
	cal, err := calibration.Load(path)
	if err != nil {
		return prediction.Params{}, err
	}
	return cal.PredictorParams(config.PredictorConfig{})
}

func openRecording(path string) (*gorm.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("recording not found: %w", err)
	}
	return database.GetSqliteDB(path)
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given\n%s", usage)
	}

	switch strings.ToLower(args[0]) {
	case "replay":
		if len(args) < 3 {
			return fmt.Errorf("replay needs a position log and a calibration file\n%s", usage)
		}
		params, err := loadParams(args[2])
		if err != nil {
			return err
		}
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		sum, err := replay(f, params, stdout)
		if err != nil {
			return err
		}
		Logger.Info("Replay complete",
			"frames", sum.Frames, "missing", sum.Missing, "crossings", sum.Crossings,
			"direct", sum.Direct, "reused", sum.Reused, "strikes", sum.Strikes)

	case "sessions":
		if len(args) < 2 {
			return fmt.Errorf("sessions needs a recording\n%s", usage)
		}
		db, err := openRecording(args[1])
		if err != nil {
			return err
		}
		return listSessions(db, stdout)

	case "show":
		if len(args) < 2 {
			return fmt.Errorf("show needs a recording\n%s", usage)
		}
		db, err := openRecording(args[1])
		if err != nil {
			return err
		}
		sessionID := ""
		if len(args) > 2 {
			sessionID = args[2]
		}
		n, err := showPredictions(db, sessionID, stdout)
		if err != nil {
			return err
		}
		Logger.Info("Listed predictions", "count", n, "session", sessionID)

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
	return nil
}

var Logger = func() *logging.SlogManager {
	m := logging.NewSlogManager()
	m.Setup(logging.Options{Level: os.Getenv("LOG_LEVEL"), Console: os.Stderr})
	return m
}().Logger()

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		Logger.Error("trajectory failed", "error", err)
		os.Exit(1)
	}
}
