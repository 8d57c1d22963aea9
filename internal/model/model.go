package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&BallPosition{},
	&Prediction{},
	&Strike{},
	&StatusSnapshot{},
}

////////////////////////
// SESSION MODELS
////////////////////////

// Session is one PowerOn..Stop run.
type Session struct {
	ID        string       `json:"id" gorm:"primarykey;size:36"`
	StartedAt time.Time    `json:"startedAt" gorm:"index:idx_session_started_at"`
	EndedAt   sql.NullTime `json:"endedAt"`
	Reason    string       `json:"reason" gorm:"size:127"`
}

func (*Session) TableName() string {
	return "sessions"
}

// BallPosition is a detected ball position
type BallPosition struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_ballposition_session_id"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time      time.Time `json:"time" gorm:"index:idx_ballposition_time"`
	Frame     uint64    `json:"frame" gorm:"index:idx_ballposition_frame"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
}

func (*BallPosition) TableName() string {
	return "ball_positions"
}

// Prediction is an accepted goal-line estimate. Path holds the simulated
// trajectory as a WKB LineString, Waypoints the same points as JSON for
// consumers without spatial support.
type Prediction struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID  string         `json:"sessionId" gorm:"size:36;index:idx_prediction_session_id"`
	Session    Session        `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time       time.Time      `json:"time" gorm:"index:idx_prediction_time"`
	Frame      uint64         `json:"frame" gorm:"index:idx_prediction_frame"`
	Kind       string         `json:"kind" gorm:"size:16"`
	Y          float64        `json:"y"`
	Reused     bool           `json:"reused"`
	Path       geom.Geometry  `json:"-"`
	PathLength float64        `json:"pathLength"`
	Waypoints  datatypes.JSON `json:"waypoints"`
}

func (*Prediction) TableName() string {
	return "predictions"
}

////////////////////////
// ACTUATOR MODELS
////////////////////////

// Strike is a strike request and whether the debouncer let it through
type Strike struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID  string    `json:"sessionId" gorm:"size:36;index:idx_strike_session_id"`
	Session    Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time       time.Time `json:"time" gorm:"index:idx_strike_time"`
	Kind       string    `json:"kind" gorm:"size:16"`
	Source     string    `json:"source" gorm:"size:16"`
	Executed   bool      `json:"executed"`
	DurationMs float32   `json:"durationMs"`
}

func (*Strike) TableName() string {
	return "strikes"
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// StatusSnapshot is the model for the periodic status of the goalkeeper
type StatusSnapshot struct {
	ID                  uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID           string         `json:"sessionId" gorm:"size:36;index:idx_status_session_id"`
	Time                time.Time      `json:"time" gorm:"index:idx_status_time"`
	State               string         `json:"state" gorm:"size:16"`
	Fps                 int            `json:"fps"`
	MailboxDepths       datatypes.JSON `json:"mailboxDepths"`
	Encoders            Encoders       `json:"encoders" gorm:"embedded;embeddedPrefix:encoder_"`
	StrikesAllowed      uint64         `json:"strikesAllowed"`
	StrikesDropped      uint64         `json:"strikesDropped"`
	LastWriteDurationMs float32        `json:"lastWriteDurationMs"`
}

func (*StatusSnapshot) TableName() string {
	return "status_snapshots"
}

// Encoders is the model for the encoder readings embedded in a snapshot
type Encoders struct {
	Linear      int64   `json:"linear"`
	Rotational  int64   `json:"rotational"`
	LinearMM    float64 `json:"linearMm"`
	RotationDeg float64 `json:"rotationDeg"`
}
