package orchestrator

import (
	"github.com/foosbot/goalkeeper/internal/channel"
	"github.com/foosbot/goalkeeper/internal/dispatcher"
	"github.com/foosbot/goalkeeper/internal/message"
)

// Channels are the mailboxes between the orchestrator and its workers and
// collaborators. They outlive sessions; PowerOn clears them.
type Channels struct {
	CameraEvents   *channel.Mailbox[message.CameraEvent]
	CameraCommands *channel.Mailbox[message.CameraCommand]
	MotorEvents    *channel.Mailbox[message.MotorEvent]
	MotorCommands  *channel.Mailbox[message.MotorCommand]
	Updates        *channel.Mailbox[message.Update]
	Controls       *channel.Mailbox[dispatcher.Event]
}

// NewChannels creates empty mailboxes.
func NewChannels() Channels {
	return Channels{
		CameraEvents:   channel.New[message.CameraEvent](),
		CameraCommands: channel.New[message.CameraCommand](),
		MotorEvents:    channel.New[message.MotorEvent](),
		MotorCommands:  channel.New[message.MotorCommand](),
		Updates:        channel.New[message.Update](),
		Controls:       channel.New[dispatcher.Event](),
	}
}

// Clear discards every pending message in every mailbox.
func (c Channels) Clear() {
	c.CameraEvents.Clear()
	c.CameraCommands.Clear()
	c.MotorEvents.Clear()
	c.MotorCommands.Clear()
	c.Updates.Clear()
	c.Controls.Clear()
}

// Depths reports the number of pending messages per mailbox.
func (c Channels) Depths() map[string]int {
	return map[string]int{
		"camera_events":   c.CameraEvents.Len(),
		"camera_commands": c.CameraCommands.Len(),
		"motor_events":    c.MotorEvents.Len(),
		"motor_commands":  c.MotorCommands.Len(),
		"updates":         c.Updates.Len(),
		"controls":        c.Controls.Len(),
	}
}
