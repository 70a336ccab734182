// internal/channels/api/envelope.go
package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/models"
)

// envelopeSchema is validated before unmarshalling so malformed channel
// payloads are rejected with a single, precise client error.
const envelopeSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["text", "source", "ownerKey"],
	"properties": {
		"text": {
			"type": "string",
			"minLength": 1
		},
		"source": {
			"type": "string",
			"enum": ["api", "mail", "twitter", "simulated"]
		},
		"locale": {
			"type": "string",
			"minLength": 2,
			"maxLength": 5
		},
		"ownerKey": {
			"type": "string",
			"minLength": 1
		},
		"recipient": {
			"type": "string"
		}
	},
	"additionalProperties": false
}`

var compiledSchema = gojsonschema.NewStringLoader(envelopeSchema)

// Envelope is the payload channel connectors push onto the inbound
// queue. Recipient is the reply address of the emitter on its channel.
type Envelope struct {
	Text      string `json:"text"`
	Source    string `json:"source"`
	Locale    string `json:"locale,omitempty"`
	OwnerKey  string `json:"ownerKey"`
	Recipient string `json:"recipient,omitempty"`
}

// Decode validates and unmarshals a raw queue payload. A payload that
// fails schema validation never reaches the parser.
func Decode(payload []byte) (*Envelope, error) {
	result, err := gojsonschema.Validate(compiledSchema, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, apperrors.NewClientError("envelope is not valid JSON: %v", err)
	}
	if !result.Valid() {
		var reasons []string
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return nil, apperrors.NewClientError("invalid envelope: %s", strings.Join(reasons, "; "))
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, apperrors.NewClientError("envelope is not valid JSON: %v", err)
	}
	if env.Locale == "" {
		env.Locale = "en"
	}
	return &env, nil
}

// RawCommand converts the envelope into the audit record persisted
// before any processing happens.
func (e *Envelope) RawCommand(now time.Time) *models.RawCommand {
	return &models.RawCommand{
		Command:   e.Text,
		Source:    e.Source,
		Emitter:   e.Recipient,
		Locale:    e.Locale,
		CreatedAt: now,
	}
}
