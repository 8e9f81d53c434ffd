package domain

type EventName string

const (
	EventAlarmStarted              EventName = "alarm_started"
	EventAlarmUpdated              EventName = "alarm_updated"
	EventAlarmEnded                EventName = "alarm_ended"
	EventChannelPermissionsChanged EventName = "channel_permissions_changed"
)

// Event is one decoded server-push notification. The set of variants is
// closed; switch on the concrete type.
type Event interface {
	Name() EventName
	isEvent()
}

type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

type Alarm struct {
	AlarmID         string    `json:"alarm_id"`
	UserID          string    `json:"user_id,omitempty"`
	UserName        string    `json:"user_name,omitempty"`
	ChannelID       string    `json:"channel_id,omitempty"`
	Location        *Location `json:"location,omitempty"`
	HasVoiceMessage bool      `json:"has_voice_message"`
	Timestamp       int64     `json:"timestamp"`
}

type AlarmStarted struct {
	Alarm
	StartedAt int64 `json:"started_at,omitempty"`
}

type AlarmUpdated struct {
	Alarm
}

type AlarmEnded struct {
	Alarm
	EndedAt int64  `json:"ended_at,omitempty"`
	EndedBy string `json:"ended_by,omitempty"`
}

type PermissionAction string

const (
	PermissionGranted PermissionAction = "granted"
	PermissionRevoked PermissionAction = "revoked"
)

func (a PermissionAction) Valid() bool {
	return a == PermissionGranted || a == PermissionRevoked
}

type ChannelPermissionsChanged struct {
	Action     PermissionAction `json:"action"`
	ChannelIDs []string         `json:"channel_ids"`
	Timestamp  int64            `json:"timestamp"`
}

func (AlarmStarted) Name() EventName              { return EventAlarmStarted }
func (AlarmUpdated) Name() EventName              { return EventAlarmUpdated }
func (AlarmEnded) Name() EventName                { return EventAlarmEnded }
func (ChannelPermissionsChanged) Name() EventName { return EventChannelPermissionsChanged }

func (AlarmStarted) isEvent()              {}
func (AlarmUpdated) isEvent()              {}
func (AlarmEnded) isEvent()                {}
func (ChannelPermissionsChanged) isEvent() {}
