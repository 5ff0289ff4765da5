package redisx

import "fmt"

const ns = "wedsys:v1"

func KeyEventSummary(eventID string) string {
	return fmt.Sprintf("%s:event:%s:summary", ns, eventID)
}

func KeySubmitLock(eventID, normalizedPhone string) string {
	return fmt.Sprintf("%s:event:%s:submit:%s", ns, eventID, normalizedPhone)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelEventsChanged() string {
	return ns + ":events:changed"
}
