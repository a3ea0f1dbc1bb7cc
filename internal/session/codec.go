// Package session provides durable, keyed conversation storage and the
// turn streaming coordinator.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/atrium-ai/atrium/pkg/types"
)

// EncodeEvent serializes an event to its stored JSON record. Tool-result
// payloads are normalized first so the record always survives JSON
// encoding; a failure to serialize one response value is recovered by
// substituting a truncated diagnostic string rather than aborting the
// whole event.
func EncodeEvent(ev *types.Event) (json.RawMessage, error) {
	record := &types.Event{Author: ev.Author}

	if ev.Content != nil {
		content := &types.Content{Role: ev.Content.Role}
		for _, part := range ev.Content.Parts {
			content.Parts = append(content.Parts, encodePart(part))
		}
		record.Content = content
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// encodePart normalizes a single part for storage.
func encodePart(part types.Part) types.Part {
	if part.FunctionResponse == nil {
		return part
	}

	resp := *part.FunctionResponse
	resp.Response = types.NormalizeValue(resp.Response)

	// Normalization is total, but guard the marshal anyway: one bad
	// payload must not take the event down with it.
	if _, err := json.Marshal(resp.Response); err != nil {
		desc := fmt.Sprintf("%v", part.FunctionResponse.Response)
		if len(desc) > 100 {
			desc = desc[:100]
		}
		resp.Response = "Error: could not serialize response - " + desc
	}

	return types.Part{FunctionResponse: &resp}
}

// DecodeEvent reconstructs an event from its stored record. Malformed
// stored data is reported as a decode error; callers treat it as local
// corruption, not a turn failure.
func DecodeEvent(data json.RawMessage) (*types.Event, error) {
	var ev types.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

// encodeEvents serializes a whole event list to the stored array form.
func encodeEvents(events []*types.Event) (string, error) {
	records := make([]json.RawMessage, 0, len(events))
	for _, ev := range events {
		record, err := EncodeEvent(ev)
		if err != nil {
			return "", err
		}
		records = append(records, record)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode events: %w", err)
	}
	return string(data), nil
}

// decodeEvents deserializes a stored array of event records in order.
func decodeEvents(eventsJSON string) ([]*types.Event, error) {
	var records []json.RawMessage
	if err := json.Unmarshal([]byte(eventsJSON), &records); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	events := make([]*types.Event, 0, len(records))
	for _, record := range records {
		ev, err := DecodeEvent(record)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// appendEncoded appends one encoded event to a stored array without
// re-encoding the existing entries.
func appendEncoded(eventsJSON string, ev *types.Event) (string, error) {
	var records []json.RawMessage
	if err := json.Unmarshal([]byte(eventsJSON), &records); err != nil {
		return "", fmt.Errorf("decode events: %w", err)
	}

	record, err := EncodeEvent(ev)
	if err != nil {
		return "", err
	}
	records = append(records, record)

	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode events: %w", err)
	}
	return string(data), nil
}
