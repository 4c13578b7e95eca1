package channel

import (
	"fmt"

	"github.com/grovetools/mirror/errors"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/mitchellh/mapstructure"
)

// Decode converts a generic JSON payload into T. Any mismatch is reported as
// a PAYLOAD_MALFORMED error so callers can drop the message whole. Types are
// matched strictly: an object never stands in for a list.
func Decode[T any](topic models.Topic, payload any) (T, error) {
	var out T
	if payload == nil {
		return out, errors.PayloadMalformed(string(topic), fmt.Errorf("empty payload"))
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "mapstructure",
	})
	if err != nil {
		return out, errors.Wrap(err, errors.ErrCodeInternal, "build payload decoder")
	}
	if err := dec.Decode(payload); err != nil {
		var zero T
		return zero, errors.PayloadMalformed(string(topic), err)
	}
	return out, nil
}

// DecodeFileEvent decodes a file-topic batch and normalizes its change
// tags. A batch with any unknown tag or missing path is rejected as a whole.
func DecodeFileEvent(payload any) (models.FileEvent, error) {
	ev, err := Decode[models.FileEvent](models.TopicFile, payload)
	if err != nil {
		return models.FileEvent{}, err
	}
	for i, c := range ev.Changes {
		kind, ok := models.ParseChangeKind(string(c.Change))
		if !ok {
			return models.FileEvent{}, errors.PayloadMalformed(string(models.TopicFile),
				fmt.Errorf("change %d: unknown change kind %q", i, c.Change))
		}
		if c.Path == "" {
			return models.FileEvent{}, errors.PayloadMalformed(string(models.TopicFile),
				fmt.Errorf("change %d: missing path", i))
		}
		ev.Changes[i].Change = kind
	}
	return ev, nil
}
