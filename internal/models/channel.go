package models

import "fmt"

// Channel identifies one logical sensor stream and its topic/feature/label scheme
type Channel string

const (
	ChannelTempHumidity Channel = "temperature-humidity"
	ChannelGas          Channel = "gas"
	ChannelLight        Channel = "light"
)

// Labels produced by fitted models and fallback rules
const (
	LabelIdeal  = "Ideal"
	LabelPanas  = "Panas"
	LabelDingin = "Dingin"

	LabelAman    = "Aman"
	LabelWaspada = "Waspada"
	LabelBahaya  = "Bahaya"

	LabelTerang = "Terang"
	LabelRedup  = "Redup"
	LabelGelap  = "Gelap"

	// Outcome labels outside every channel vocabulary
	LabelUnknown = "Unknown"
	LabelError   = "Error"
	LabelNoModel = "No Model"
)

// Channels returns the fixed channel set in display order
func Channels() []Channel {
	return []Channel{ChannelTempHumidity, ChannelGas, ChannelLight}
}

// ParseChannel validates a channel name
func ParseChannel(name string) (Channel, error) {
	for _, ch := range Channels() {
		if string(ch) == name {
			return ch, nil
		}
	}
	return "", fmt.Errorf("unknown channel %q", name)
}

// Vocabulary returns the known labels for the channel, in display order
func (c Channel) Vocabulary() []string {
	switch c {
	case ChannelTempHumidity:
		return []string{LabelIdeal, LabelPanas, LabelDingin}
	case ChannelGas:
		return []string{LabelAman, LabelWaspada, LabelBahaya}
	case ChannelLight:
		return []string{LabelTerang, LabelRedup, LabelGelap}
	default:
		return nil
	}
}

// Known reports whether label belongs to the channel vocabulary
func (c Channel) Known(label string) bool {
	for _, l := range c.Vocabulary() {
		if l == label {
			return true
		}
	}
	return false
}

// IdealLabel returns the label that counts towards the health score.
// Only the temperature-humidity channel has one.
func (c Channel) IdealLabel() (string, bool) {
	if c == ChannelTempHumidity {
		return LabelIdeal, true
	}
	return "", false
}

// FeatureNames returns the fixed feature order used to build model input vectors
func (c Channel) FeatureNames() []string {
	switch c {
	case ChannelTempHumidity:
		return []string{"temp", "humidity"}
	case ChannelGas:
		return []string{"gas_detected", "temp"}
	case ChannelLight:
		return []string{"ldr_value"}
	default:
		return nil
	}
}
