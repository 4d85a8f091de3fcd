package eventbus

import (
	"fmt"
	"strings"
)

func streamNameFor(eventType string) string {
	return nameFor("events", eventType)
}

// dlqStreamName returns the DLQ stream name for the given event type.
func dlqStreamName(eventType string) string {
	return nameFor("dlq", eventType)
}

// groupNameFor returns the Redis consumer group name for the event type.
func groupNameFor(eventType string) string {
	return nameFor("group", eventType)
}

func nameFor(prefix, eventType string) string {
	return fmt.Sprintf("%s:%s", prefix, strings.ToLower(eventType))
}
