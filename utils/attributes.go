package utils

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// DecodeAttributes decodes a loosely typed attribute map (as read from a JSON or YAML config file)
// into the struct pointed to by into. Field names come from the struct's json tags and duration
// strings such as "10ms" are accepted for time.Duration fields.
func DecodeAttributes(attributes map[string]interface{}, into interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           into,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(attributes); err != nil {
		return errors.Wrapf(err, "decoding attributes into %T", into)
	}
	return nil
}
