package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/pttsync/internal/domain"
)

// FormatEvent renders one stream event as a single plain log line.
func FormatEvent(topic string, event domain.Event) string {
	var detail string
	switch e := event.(type) {
	case domain.AlarmStarted:
		detail = alarmDetail(e.Alarm)
		if e.StartedAt != 0 {
			detail += " started=" + formatMillis(e.StartedAt)
		}
	case domain.AlarmUpdated:
		detail = alarmDetail(e.Alarm)
	case domain.AlarmEnded:
		detail = alarmDetail(e.Alarm)
		if e.EndedBy != "" {
			detail += " ended_by=" + e.EndedBy
		}
		if e.EndedAt != 0 {
			detail += " ended=" + formatMillis(e.EndedAt)
		}
	case domain.ChannelPermissionsChanged:
		detail = fmt.Sprintf("%s channels=[%s]", e.Action, strings.Join(e.ChannelIDs, ","))
	default:
		detail = fmt.Sprintf("%T", event)
	}

	return fmt.Sprintf("[%s] %s %s", topic, event.Name(), detail)
}

func alarmDetail(a domain.Alarm) string {
	fields := []string{"alarm=" + a.AlarmID}
	if a.UserName != "" {
		fields = append(fields, "user="+a.UserName)
	} else if a.UserID != "" {
		fields = append(fields, "user="+a.UserID)
	}
	if a.ChannelID != "" {
		fields = append(fields, "channel="+a.ChannelID)
	}
	if a.Location != nil {
		fields = append(fields, fmt.Sprintf("at=%.5f,%.5f", a.Location.Latitude, a.Location.Longitude))
	}
	if a.HasVoiceMessage {
		fields = append(fields, "voice")
	}
	return strings.Join(fields, " ")
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
