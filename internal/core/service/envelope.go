package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

// envelopeKeys are the members the backend may place next to "data".
var envelopeKeys = map[string]struct{}{
	"data":       {},
	"statusCode": {},
	"message":    {},
	"success":    {},
	"timestamp":  {},
	"path":       {},
}

// UnwrapEnvelope returns the payload of a backend response body. Bodies of
// the form {"statusCode":..,"data":X} yield X; anything else is returned
// as-is. An empty body yields nil.
func UnwrapEnvelope(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("decode response: invalid json")
	}
	if trimmed[0] != '{' {
		return json.RawMessage(trimmed), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	data, ok := obj["data"]
	if !ok {
		return json.RawMessage(trimmed), nil
	}
	for k := range obj {
		if _, known := envelopeKeys[k]; !known {
			return json.RawMessage(trimmed), nil
		}
	}
	return data, nil
}

// DecodeEnvelope unwraps body and decodes the payload into out.
func DecodeEnvelope(body []byte, out any) error {
	payload, err := UnwrapEnvelope(body)
	if err != nil {
		return err
	}
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return fmt.Errorf("decode response: empty payload")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorBody covers the error shapes the backend produces: message may be a
// string or a list of validation messages.
type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

// apiErrorFrom builds a domain.APIError from a non-2xx response.
func apiErrorFrom(status int, body []byte) *domain.APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return domain.NewAPIError(status, "")
	}

	if len(eb.Message) > 0 {
		var single string
		if json.Unmarshal(eb.Message, &single) == nil && single != "" {
			return domain.NewAPIError(status, single)
		}
		var list []string
		if json.Unmarshal(eb.Message, &list) == nil && len(list) > 0 {
			return domain.NewAPIError(status, strings.Join(list, "; "))
		}
	}
	return domain.NewAPIError(status, eb.Error)
}
