package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SavedAtLayout is the timestamp format stamped on saved items (UTC, millisecond precision).
const SavedAtLayout = "2006-01-02T15:04:05.000Z"

// Reserved JSON keys. Everything else in a movie record is opaque payload.
const (
	keyID      = "id"
	keySavedAt = "savedAt"
)

// Movie is a catalog record as handed to us by the caller.
// Only ID is interpreted; every other field is kept verbatim in Payload.
type Movie struct {
	ID      int
	Payload map[string]json.RawMessage
}

// NewMovie builds a Movie from an id and plain field values.
func NewMovie(id int, fields map[string]any) (Movie, error) {
	m := Movie{ID: id, Payload: make(map[string]json.RawMessage, len(fields))}
	for k, v := range fields {
		if k == keyID || k == keySavedAt {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return Movie{}, fmt.Errorf("encode field %q: %w", k, err)
		}
		m.Payload[k] = raw
	}
	return m, nil
}

// MarshalJSON flattens the record back into a single object.
func (m Movie) MarshalJSON() ([]byte, error) {
	return marshalFlat(m.ID, m.Payload, nil)
}

// UnmarshalJSON requires an integer id and keeps every other key as payload.
func (m *Movie) UnmarshalJSON(data []byte) error {
	id, payload, _, err := unmarshalFlat(data)
	if err != nil {
		return err
	}
	m.ID = id
	m.Payload = payload
	return nil
}

// Clone returns a copy that shares no map with the receiver.
func (m Movie) Clone() Movie {
	out := Movie{ID: m.ID}
	if m.Payload != nil {
		out.Payload = make(map[string]json.RawMessage, len(m.Payload))
		for k, v := range m.Payload {
			out.Payload[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

func (m Movie) stringField(key string) string {
	var s string
	if raw, ok := m.Payload[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// Title returns the "title" field, falling back to "name" (TV records).
func (m Movie) Title() string {
	if t := m.stringField("title"); t != "" {
		return t
	}
	return m.stringField("name")
}

// Overview returns the plot synopsis.
func (m Movie) Overview() string { return m.stringField("overview") }

// Language returns the original language code.
func (m Movie) Language() string { return m.stringField("original_language") }

// Rating returns vote_average, or 0 when missing.
func (m Movie) Rating() float64 {
	var f float64
	if raw, ok := m.Payload["vote_average"]; ok {
		_ = json.Unmarshal(raw, &f)
	}
	return f
}

// Year parses the year from release_date, or 0 when missing or malformed.
func (m Movie) Year() int {
	date := m.stringField("release_date")
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

// FormattedRating returns the rating the way the saved screen shows it.
func (m Movie) FormattedRating() string {
	if _, ok := m.Payload["vote_average"]; !ok || m.Rating() == 0 {
		return "N/A"
	}
	return strconv.FormatFloat(m.Rating(), 'f', 1, 64)
}

// SavedItem is a bookmarked movie plus the time it was saved.
type SavedItem struct {
	Movie
	SavedAt string
}

// NewSavedItem stamps a copy of m with t.
func NewSavedItem(m Movie, t time.Time) SavedItem {
	return SavedItem{Movie: m.Clone(), SavedAt: t.UTC().Format(SavedAtLayout)}
}

// SavedTime parses SavedAt. Zero time when unparsable.
func (s SavedItem) SavedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, s.SavedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s SavedItem) MarshalJSON() ([]byte, error) {
	return marshalFlat(s.ID, s.Payload, &s.SavedAt)
}

func (s *SavedItem) UnmarshalJSON(data []byte) error {
	id, payload, savedAt, err := unmarshalFlat(data)
	if err != nil {
		return err
	}
	s.ID = id
	s.Payload = payload
	s.SavedAt = savedAt
	return nil
}

func marshalFlat(id int, payload map[string]json.RawMessage, savedAt *string) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(payload)+2)
	for k, v := range payload {
		if k == keyID || k == keySavedAt {
			continue
		}
		out[k] = v
	}
	out[keyID] = json.RawMessage(strconv.Itoa(id))
	if savedAt != nil {
		raw, err := json.Marshal(*savedAt)
		if err != nil {
			return nil, err
		}
		out[keySavedAt] = raw
	}
	return json.Marshal(out)
}

func unmarshalFlat(data []byte) (int, map[string]json.RawMessage, string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return 0, nil, "", err
	}
	if fields == nil {
		return 0, nil, "", ErrMissingID
	}

	rawID, ok := fields[keyID]
	if !ok {
		return 0, nil, "", ErrMissingID
	}
	dec := json.NewDecoder(bytes.NewReader(rawID))
	dec.UseNumber()
	var num json.Number
	if err := dec.Decode(&num); err != nil {
		return 0, nil, "", fmt.Errorf("%w: %s", ErrMissingID, rawID)
	}
	id, err := strconv.Atoi(num.String())
	if err != nil {
		return 0, nil, "", fmt.Errorf("%w: %s", ErrMissingID, rawID)
	}
	delete(fields, keyID)

	var savedAt string
	if raw, ok := fields[keySavedAt]; ok {
		if err := json.Unmarshal(raw, &savedAt); err != nil {
			return 0, nil, "", fmt.Errorf("decode savedAt: %w", err)
		}
		delete(fields, keySavedAt)
	}

	return id, fields, savedAt, nil
}
