package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/ambudispatch/infra/amqp"
	"github.com/kilianp07/ambudispatch/infra/mqtt"
)

// NotifyConfig selects how crews learn about their assignment.
type NotifyConfig struct {
	// Transport is none, mqtt or amqp.
	Transport         string      `json:"transport"`
	AckTimeoutSeconds int         `json:"ack_timeout_seconds"`
	MQTT              mqtt.Config `json:"mqtt"`
	AMQP              amqp.Config `json:"amqp"`
}

func (c *NotifyConfig) SetDefaults() {
	if c.Transport == "" {
		c.Transport = "none"
	}
	if c.AckTimeoutSeconds == 0 {
		c.AckTimeoutSeconds = 30
	}
	switch c.Transport {
	case "mqtt":
		c.MQTT.SetDefaults()
	case "amqp":
		c.AMQP.SetDefaults()
	}
}

func (c NotifyConfig) Validate() error {
	if c.AckTimeoutSeconds < 0 {
		return fmt.Errorf("ack_timeout_seconds must be positive")
	}
	switch c.Transport {
	case "none":
		return nil
	case "mqtt":
		return c.MQTT.Validate()
	case "amqp":
		return c.AMQP.Validate()
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
}

// AckTimeout is the time a crew has to acknowledge an assignment.
func (c NotifyConfig) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutSeconds) * time.Second
}
