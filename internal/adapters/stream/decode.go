package stream

import (
	"encoding/json"
	"fmt"

	"github.com/bnema/pttsync/internal/domain"
)

type envelope struct {
	Event     domain.EventName `json:"event"`
	Timestamp int64            `json:"timestamp"`
}

func decodeEnvelope(payload []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return envelope{}, fmt.Errorf("decode event envelope: %w", err)
	}
	if env.Event == "" {
		return envelope{}, fmt.Errorf("decode event envelope: missing event name")
	}
	return env, nil
}

func DecodeAlarmEvent(payload []byte) (domain.Event, error) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		return nil, err
	}

	switch env.Event {
	case domain.EventAlarmStarted:
		var event domain.AlarmStarted
		if err := decodeBody(payload, &event); err != nil {
			return nil, err
		}
		return event, nil
	case domain.EventAlarmUpdated:
		var event domain.AlarmUpdated
		if err := decodeBody(payload, &event); err != nil {
			return nil, err
		}
		return event, nil
	case domain.EventAlarmEnded:
		var event domain.AlarmEnded
		if err := decodeBody(payload, &event); err != nil {
			return nil, err
		}
		return event, nil
	default:
		return nil, nil
	}
}

func DecodeChannelEvent(payload []byte) (domain.Event, error) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		return nil, err
	}

	if env.Event != domain.EventChannelPermissionsChanged {
		return nil, nil
	}

	var event domain.ChannelPermissionsChanged
	if err := decodeBody(payload, &event); err != nil {
		return nil, err
	}
	if !event.Action.Valid() {
		return nil, fmt.Errorf("decode %s: unsupported action %q", env.Event, event.Action)
	}
	return event, nil
}

func decodeBody(payload []byte, target any) error {
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode event body: %w", err)
	}
	return nil
}
