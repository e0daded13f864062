package events

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Format selects the wire encoding of events.
type Format string

const (
	FormatJSON     Format = "json"
	FormatProtobuf Format = "protobuf"

	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

// ParseFormat accepts json, protobuf or an empty string (json).
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatProtobuf:
		return FormatProtobuf, nil
	default:
		return "", fmt.Errorf("unsupported event format %q (json, protobuf)", s)
	}
}

// Encode serializes ev. Protobuf payloads are a google.protobuf.Struct with
// the same field names as the JSON form.
func Encode(ev Event, format Format) (data []byte, contentType string, err error) {
	switch format {
	case FormatJSON, "":
		data, err = json.Marshal(ev)
		if err != nil {
			return nil, "", fmt.Errorf("json encode event: %w", err)
		}
		return data, ContentTypeJSON, nil
	case FormatProtobuf:
		st, err := structpb.NewStruct(eventFields(ev))
		if err != nil {
			return nil, "", fmt.Errorf("protobuf encode event: %w", err)
		}
		data, err = proto.MarshalOptions{Deterministic: true}.Marshal(st)
		if err != nil {
			return nil, "", fmt.Errorf("protobuf encode event: %w", err)
		}
		return data, ContentTypeProtobuf, nil
	default:
		return nil, "", fmt.Errorf("unsupported event format %q", format)
	}
}

// Decode parses a payload produced by Encode. Numeric injury ids come back as float64.
func Decode(data []byte, contentType string) (Event, error) {
	var ev Event
	switch contentType {
	case ContentTypeJSON, "":
		if err := json.Unmarshal(data, &ev); err != nil {
			return Event{}, fmt.Errorf("json decode event: %w", err)
		}
		return ev, nil
	case ContentTypeProtobuf:
		var st structpb.Struct
		if err := proto.Unmarshal(data, &st); err != nil {
			return Event{}, fmt.Errorf("protobuf decode event: %w", err)
		}
		// round-trip through JSON so both encodings share one field mapping
		raw, err := json.Marshal(st.AsMap())
		if err != nil {
			return Event{}, fmt.Errorf("protobuf decode event: %w", err)
		}
		if err := json.Unmarshal(raw, &ev); err != nil {
			return Event{}, fmt.Errorf("protobuf decode event: %w", err)
		}
		return ev, nil
	default:
		return Event{}, fmt.Errorf("unsupported content type %q", contentType)
	}
}

func eventFields(ev Event) map[string]any {
	fields := map[string]any{
		"id":          ev.ID,
		"type":        ev.Type,
		"key":         ev.Key,
		"count":       ev.Count,
		"occurred_at": ev.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if ev.Service != "" {
		fields["service"] = ev.Service
	}
	if ev.InjuryID != nil {
		fields["injury_id"] = ev.InjuryID
	}
	if ev.Removed != 0 {
		fields["removed"] = ev.Removed
	}
	if ev.RequestID != "" {
		fields["request_id"] = ev.RequestID
	}
	return fields
}
