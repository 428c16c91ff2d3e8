package models

import "time"

// TimestampLayout is the wire and export format for timestamps (YYYY-MM-DD HH:MM:SS)
const TimestampLayout = "2006-01-02 15:04:05"

// LDR sensor range of the ESP32 12-bit ADC
const (
	LDRMin = 0
	LDRMax = 4095
)

// Message is a raw transport delivery
type Message struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Reading represents one decoded sensor sample for a channel.
// Only the fields of the reading's channel are meaningful.
type Reading struct {
	Channel     Channel   `json:"channel"`
	Timestamp   time.Time `json:"timestamp"`
	Temp        float64   `json:"temp,omitempty"`
	Humidity    float64   `json:"humidity,omitempty"`
	GasDetected bool      `json:"gas_detected,omitempty"`
	LDRValue    int       `json:"ldr_value,omitempty"`
}

// Features builds the model input vector in the channel's fixed order
func (r Reading) Features() []float64 {
	switch r.Channel {
	case ChannelTempHumidity:
		return []float64{r.Temp, r.Humidity}
	case ChannelGas:
		gas := 0.0
		if r.GasDetected {
			gas = 1.0
		}
		return []float64{gas, r.Temp}
	case ChannelLight:
		return []float64{float64(r.LDRValue)}
	default:
		return nil
	}
}
