// Package codec reads and writes the queue message format
//
//	Data: DD/MM/YYYY, Hora: HH:MM[:SS], Uuid: <id>, Nome: <name>
//
// Fields are positional; labels are not checked.
package codec

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	segmentSep = ", "
	labelSep   = ": "
	segments   = 4

	wireDate = "2/1/2006"
)

// Record is one parsed queue message.
type Record struct {
	Date time.Time
	Time string
	ID   string
	Name string
}

// DateString renders Date as YYYY-MM-DD.
func (r Record) DateString() string {
	return r.Date.Format(time.DateOnly)
}

// ParseError carries the offending payload so it can be logged.
type ParseError struct {
	Payload string
	Reason  string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %q: %s: %v", e.Payload, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %q: %s", e.Payload, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func Parse(payload []byte) (Record, error) {
	if !utf8.Valid(payload) {
		return Record{}, &ParseError{Payload: strings.ToValidUTF8(string(payload), "�"), Reason: "payload is not valid UTF-8"}
	}
	text := string(payload)

	parts := strings.Split(text, segmentSep)
	if len(parts) != segments {
		return Record{}, &ParseError{Payload: text, Reason: fmt.Sprintf("want %d segments, got %d", segments, len(parts))}
	}

	var values [segments]string
	for i, p := range parts {
		// the value ends at the next separator, if any
		fields := strings.Split(p, labelSep)
		if len(fields) < 2 {
			return Record{}, &ParseError{Payload: text, Reason: fmt.Sprintf("segment %d %q has no label", i, p)}
		}
		values[i] = fields[1]
	}

	date, err := time.Parse(wireDate, values[0])
	if err != nil {
		return Record{}, &ParseError{Payload: text, Reason: "invalid date", Err: err}
	}

	return Record{
		Date: date,
		Time: values[1],
		ID:   values[2],
		Name: values[3],
	}, nil
}

// Format is the inverse of Parse.
func Format(r Record) string {
	return strings.Join([]string{
		"Data" + labelSep + r.Date.Format("02/01/2006"),
		"Hora" + labelSep + r.Time,
		"Uuid" + labelSep + r.ID,
		"Nome" + labelSep + r.Name,
	}, segmentSep)
}
