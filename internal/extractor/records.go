package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"ipanalyzer/internal/domain"
)

// recordSchema is the JSON schema handed to providers that support
// constrained decoding.
var recordSchema = map[string]interface{}{
	"type": "ARRAY",
	"items": map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"ip_address":    map[string]interface{}{"type": "STRING"},
			"timestamp_str": map[string]interface{}{"type": "STRING", "nullable": true},
		},
		"required": []string{"ip_address", "timestamp_str"},
	},
}

// RecordSchema returns the response schema for (ip, timestamp) records.
func RecordSchema() map[string]interface{} {
	return recordSchema
}

type wireRecord struct {
	IPAddress    *string         `json:"ip_address"`
	TimestampStr json.RawMessage `json:"timestamp_str"`
}

// ParseRecords validates the model's answer and converts it into raw
// records. The answer must be a JSON array of objects with exactly the keys
// ip_address (string) and timestamp_str (string or null); a surrounding
// markdown code fence is tolerated. Anything else is a *MalformedOutputError.
func ParseRecords(raw string) ([]domain.RawRecord, error) {
	payload := StripCodeFence(raw)
	if payload == "" {
		return nil, &MalformedOutputError{Err: errors.New("empty response"), Raw: raw}
	}
	if !strings.HasPrefix(payload, "[") {
		return nil, &MalformedOutputError{Err: errors.New("response is not a JSON array"), Raw: raw}
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()

	var items []wireRecord
	if err := dec.Decode(&items); err != nil {
		return nil, &MalformedOutputError{Err: err, Raw: raw}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &MalformedOutputError{Err: errors.New("trailing data after JSON array"), Raw: raw}
	}

	records := make([]domain.RawRecord, 0, len(items))
	for i, item := range items {
		if item.IPAddress == nil {
			return nil, &MalformedOutputError{Err: fmt.Errorf("element %d: missing ip_address", i), Raw: raw}
		}
		ts, present, err := decodeTimestamp(item.TimestampStr)
		if err != nil {
			return nil, &MalformedOutputError{Err: fmt.Errorf("element %d: %w", i, err), Raw: raw}
		}
		records = append(records, domain.RawRecord{
			IPText:        *item.IPAddress,
			TimestampText: ts,
			HasTimestamp:  present,
		})
	}
	return records, nil
}

func decodeTimestamp(raw json.RawMessage) (string, bool, error) {
	if len(raw) == 0 {
		return "", false, errors.New("missing timestamp_str")
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, fmt.Errorf("timestamp_str must be a string or null")
	}
	return s, strings.TrimSpace(s) != "", nil
}

// StripCodeFence removes a surrounding markdown code fence such as ```json.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
