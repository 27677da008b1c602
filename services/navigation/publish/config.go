package publish

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/macro-rover/navigator/logging"
	"github.com/macro-rover/navigator/services/navigation"
)

// Config selects the publishers a session emits to. Any subset may be set.
type Config struct {
	MQTT      *MQTTConfig      `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
	Websocket *WebsocketConfig `json:"websocket,omitempty" yaml:"websocket,omitempty"`
	File      *FileConfig      `json:"file,omitempty" yaml:"file,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.MQTT != nil {
		if err := cfg.MQTT.Validate(fmt.Sprintf("%s.mqtt", path)); err != nil {
			return err
		}
	}
	if cfg.Websocket != nil {
		if err := cfg.Websocket.Validate(fmt.Sprintf("%s.websocket", path)); err != nil {
			return err
		}
	}
	if cfg.File != nil {
		if err := cfg.File.Validate(fmt.Sprintf("%s.file", path)); err != nil {
			return err
		}
	}
	return nil
}

// FromConfig builds every configured publisher and joins them with Multi. The hub is returned
// separately so the caller can serve it; it is nil when no websocket is configured. The returned
// publisher is nil when nothing is configured.
func FromConfig(cfg Config, logger logging.Logger) (navigation.Publisher, *WebsocketHub, error) {
	if err := cfg.Validate("publish"); err != nil {
		return nil, nil, err
	}

	var publishers []navigation.Publisher
	closeAll := func() {
		for _, p := range publishers {
			if err := p.Close(); err != nil {
				logger.Warnw("error closing publisher", "error", err)
			}
		}
	}

	if cfg.File != nil {
		f, err := NewFile(*cfg.File)
		if err != nil {
			return nil, nil, err
		}
		publishers = append(publishers, f)
	}
	if cfg.MQTT != nil {
		m, err := NewMQTT(*cfg.MQTT, logger.Sublogger("mqtt"))
		if err != nil {
			closeAll()
			return nil, nil, errors.Wrap(err, "cannot create MQTT publisher")
		}
		publishers = append(publishers, m)
	}
	var hub *WebsocketHub
	if cfg.Websocket != nil {
		hub = NewWebsocketHub(logger.Sublogger("websocket"))
		publishers = append(publishers, hub)
	}
	return Multi(publishers...), hub, nil
}
