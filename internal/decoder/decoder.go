// Package decoder turns raw transport deliveries into typed channel readings.
package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"smartcage-backend/internal/models"
)

// ErrUnknownTopic is returned for topics that belong to no channel.
// Callers ignore it silently.
var ErrUnknownTopic = errors.New("topic does not match any channel")

// DecodeError reports a payload that could not be turned into a reading
type DecodeError struct {
	Topic  string
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode " + e.Topic
	if e.Field != "" {
		msg += " field " + e.Field
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Routes maps inbound topics to channels
type Routes map[string]models.Channel

// Decoder validates payloads against the channel feature schemas
type Decoder struct {
	routes Routes
}

// New creates a decoder for the given inbound topic routes
func New(routes Routes) *Decoder {
	return &Decoder{routes: routes}
}

// Channel resolves the channel for a topic
func (d *Decoder) Channel(topic string) (models.Channel, bool) {
	ch, ok := d.routes[topic]
	return ch, ok
}

// Decode parses a JSON object payload into a Reading stamped with receivedAt
func (d *Decoder) Decode(topic string, payload []byte, receivedAt time.Time) (models.Reading, error) {
	channel, ok := d.routes[topic]
	if !ok {
		return models.Reading{}, ErrUnknownTopic
	}

	fields, err := parseObject(payload)
	if err != nil {
		return models.Reading{}, &DecodeError{Topic: topic, Reason: "payload is not a JSON object", Err: err}
	}

	reading := models.Reading{Channel: channel, Timestamp: receivedAt}

	switch channel {
	case models.ChannelTempHumidity:
		if reading.Temp, err = floatField(fields, "temp"); err != nil {
			return models.Reading{}, fieldError(topic, "temp", err)
		}
		if reading.Humidity, err = floatField(fields, "humidity"); err != nil {
			return models.Reading{}, fieldError(topic, "humidity", err)
		}

	case models.ChannelGas:
		if reading.GasDetected, err = boolField(fields, "gas_detected"); err != nil {
			return models.Reading{}, fieldError(topic, "gas_detected", err)
		}
		if reading.Temp, err = floatField(fields, "temp"); err != nil {
			return models.Reading{}, fieldError(topic, "temp", err)
		}

	case models.ChannelLight:
		value, err := floatField(fields, "ldr_value")
		if err != nil {
			return models.Reading{}, fieldError(topic, "ldr_value", err)
		}
		if value < math.MinInt32 || value > math.MaxInt32 {
			return models.Reading{}, fieldError(topic, "ldr_value", fmt.Errorf("%g overflows int32", value))
		}
		reading.LDRValue = int(value)
	}

	return reading, nil
}

// OutOfRange reports light readings beyond the 12-bit ADC range
func OutOfRange(r models.Reading) bool {
	return r.Channel == models.ChannelLight && (r.LDRValue < models.LDRMin || r.LDRValue > models.LDRMax)
}

func fieldError(topic, field string, err error) error {
	return &DecodeError{Topic: topic, Field: field, Reason: "invalid value", Err: err}
}

func parseObject(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("null payload")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON object")
	}
	return fields, nil
}

// floatField coerces numbers and numeric strings; a missing or null field is 0
func floatField(fields map[string]any, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return 0, nil
	}

	var value float64
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		value = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, err
		}
		value = f
	case bool:
		if v {
			value = 1
		}
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("non-finite number")
	}
	return value, nil
}

// boolField accepts true/false, 0/1 and their string forms; a missing or null field is false
func boolField(fields map[string]any, key string) (bool, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return false, nil
	}

	switch v := raw.(type) {
	case bool:
		return v, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return false, err
		}
		return f != 0, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	default:
		return false, fmt.Errorf("unsupported type %T", raw)
	}
}
