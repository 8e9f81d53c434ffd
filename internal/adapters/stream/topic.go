package stream

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/pttsync/internal/domain"
)

const (
	AlarmTopicName   = "alarm-updates"
	ChannelTopicName = "channel-updates"
)

// DecodeFunc turns one data payload into a domain event. It returns a nil
// event and nil error for envelopes it does not recognise.
type DecodeFunc func(payload []byte) (domain.Event, error)

// Topic describes one server-push subscription and its reconnect policy.
type Topic struct {
	Name       string
	Path       string
	MaxRetries int
	RetryDelay time.Duration
	Decode     DecodeFunc
}

func (t Topic) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("topic name is required")
	}
	if !strings.HasPrefix(t.Path, "/") {
		return fmt.Errorf("topic %q path must be absolute", t.Name)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("topic %q max retries must not be negative", t.Name)
	}
	if t.RetryDelay < 0 {
		return fmt.Errorf("topic %q retry delay must not be negative", t.Name)
	}
	if t.Decode == nil {
		return fmt.Errorf("topic %q decoder is required", t.Name)
	}
	return nil
}

// AlarmTopic is safety critical and retries fast.
func AlarmTopic() Topic {
	return Topic{
		Name:       AlarmTopicName,
		Path:       "/api/mobile/alarm-updates/stream",
		MaxRetries: 5,
		RetryDelay: 3 * time.Second,
		Decode:     DecodeAlarmEvent,
	}
}

func ChannelTopic() Topic {
	return Topic{
		Name:       ChannelTopicName,
		Path:       "/api/mobile/channel-updates/stream",
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		Decode:     DecodeChannelEvent,
	}
}

// TopicByName returns the preset for name, or false.
func TopicByName(name string) (Topic, bool) {
	switch strings.TrimSpace(name) {
	case AlarmTopicName, "alarm":
		return AlarmTopic(), true
	case ChannelTopicName, "channel":
		return ChannelTopic(), true
	default:
		return Topic{}, false
	}
}
