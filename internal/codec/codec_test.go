package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_WellFormed(t *testing.T) {
	rec, err := Parse([]byte("Data: 05/03/2024, Hora: 14:30:00, Uuid: abc-123, Nome: Alice"))
	require.NoError(t, err)

	assert.Equal(t, "2024-03-05", rec.DateString())
	assert.Equal(t, "14:30:00", rec.Time)
	assert.Equal(t, "abc-123", rec.ID)
	assert.Equal(t, "Alice", rec.Name)
}

func TestParse_IsRepeatable(t *testing.T) {
	payload := []byte("Data: 31/12/1999, Hora: 23:59, Uuid: 7, Nome: Zé")
	a, errA := Parse(payload)
	b, errB := Parse(payload)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
	assert.Equal(t, "Zé", a.Name)
}

func TestParse_SingleDigitDayAndMonth(t *testing.T) {
	rec, err := Parse([]byte("Data: 5/3/2024, Hora: 08:00, Uuid: x, Nome: y"))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", rec.DateString())
}

func TestParse_ValueStopsAtNextLabelSeparator(t *testing.T) {
	rec, err := Parse([]byte("Data: 01/01/2024, Hora: 10:00, Uuid: a: b, Nome: c"))
	require.NoError(t, err)
	assert.Equal(t, "a", rec.ID)

	rec, err = Parse([]byte("Data: 05/03/2024, Hora: 14:30:00, Uuid: abc-123, Nome: Maria: da Silva"))
	require.NoError(t, err)
	assert.Equal(t, "Maria", rec.Name)
	assert.Equal(t, "14:30:00", rec.Time)
}

func TestParse_Failures(t *testing.T) {
	cases := map[string]string{
		"missing Nome":     "Data: 05/03/2024, Hora: 14:30:00, Uuid: abc-123",
		"extra segment":    "Data: 05/03/2024, Hora: 14:30:00, Uuid: abc-123, Nome: A, Extra: 1",
		"unlabeled":        "05/03/2024, Hora: 14:30:00, Uuid: abc-123, Nome: Alice",
		"bad date":         "Data: 2024-03-05, Hora: 14:30:00, Uuid: abc-123, Nome: Alice",
		"impossible date":  "Data: 31/02/2024, Hora: 14:30:00, Uuid: abc-123, Nome: Alice",
		"empty":            "",
		"wrong separators": "Data:05/03/2024,Hora:14:30,Uuid:1,Nome:A",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(payload))
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %v", err)
			assert.Equal(t, payload, pe.Payload)
			assert.NotEmpty(t, pe.Reason)
		})
	}
}

func TestParse_InvalidUTF8(t *testing.T) {
	_, err := Parse([]byte{'D', 0xff, 0xfe})
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Reason, "UTF-8")
}

func TestParse_DateErrorUnwraps(t *testing.T) {
	_, err := Parse([]byte("Data: xx/03/2024, Hora: 1, Uuid: 2, Nome: 3"))
	var te *time.ParseError
	assert.True(t, errors.As(err, &te))
}

func TestFormat_ParsesBack(t *testing.T) {
	in := Record{
		Date: time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		Time: "14:30:00",
		ID:   "abc-123",
		Name: "Alice",
	}
	wire := Format(in)
	assert.Equal(t, "Data: 05/03/2024, Hora: 14:30:00, Uuid: abc-123, Nome: Alice", wire)

	out, err := Parse([]byte(wire))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
