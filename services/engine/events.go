package engine

import (
	"strconv"
	"time"
)

type EventType int

const (
	EventEntry EventType = iota
	EventStopHit
	EventTargetHit
	EventConditionExit
	EventDayEnd
	EventLegTruncated
)

func (t EventType) String() string {
	switch t {
	case EventEntry:
		return "Entry"
	case EventStopHit:
		return "StopHit"
	case EventTargetHit:
		return "TargetHit"
	case EventConditionExit:
		return "ConditionExit"
	case EventDayEnd:
		return "DayEnd"
	case EventLegTruncated:
		return "LegTruncated"
	}
	return "Unknown"
}

// MarshalJSON emits the name so serialized books stay readable.
func (t EventType) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

// Event is one lifecycle step of a leg simulation.
type Event struct {
	Ts     time.Time `json:"ts"`
	Type   EventType `json:"type"`
	Leg    string    `json:"leg"`
	Ticker string    `json:"ticker,omitempty"`
}

// EventLog collects events for one leg; legs run on separate goroutines and
// each owns its log, so no locking is needed.
type EventLog struct {
	Events []Event
}

func (l *EventLog) Append(e Event) { l.Events = append(l.Events, e) }
