package ws

import (
	"context"
	"time"

	"moment-chat/internal/observability"
	"moment-chat/internal/rabbitmq"
)

// Session lifecycle states. Closed and Failed are terminal.
type sessionState int

const (
	stateConnecting sessionState = iota
	stateOpen
	stateClosed
	stateFailed
)

func wsRoutingKey(kind string) string {
	if kind == "group" {
		return "ws_events.groups"
	}
	return "ws_events.chats"
}

func publishWSEvent(ctx context.Context, pub rabbitmq.Publisher, kind, resourceID, event, reason string, info ConnInfo) {
	if pub == nil {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kind,
			"resource_id": resourceID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = pub.Publish(ctx, wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(kind, event)
}
