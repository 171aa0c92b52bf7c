/**
 * @description
 * Provider webhook payload models. Payloads arrive shaped differently per
 * provider, so they are modeled as a closed union over the known shapes with
 * an explicit unknown-provider fallback. Provider identity is resolved from
 * the payload shape first; signature-scheme selection depends on it.
 */
package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// Provider identifies a payment provider by its wire contract.
type Provider string

const (
	ProviderPaystack    Provider = "paystack"
	ProviderStripe      Provider = "stripe"
	ProviderFlutterwave Provider = "flutterwave"
	ProviderUnknown     Provider = "unknown"
)

// ErrUnrecognizedPayload is returned when a webhook body matches no known
// provider shape.
var ErrUnrecognizedPayload = errors.New("webhook payload matches no known provider shape")

// ProviderEvent is the normalized form of a verified provider webhook.
// DegradedTrust marks an event accepted without a signature check because no
// secret was configured for its provider; the acceptance is audited.
type ProviderEvent struct {
	Provider      Provider        `json:"provider"`
	EventType     string          `json:"event_type"`
	Reference     string          `json:"reference"`
	Amount        int64           `json:"amount"`
	Succeeded     bool            `json:"succeeded"`
	Terminal      bool            `json:"terminal"`
	DegradedTrust bool            `json:"degraded_trust,omitempty"`
	Raw           json.RawMessage `json:"raw"`
}

type paystackPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
	} `json:"data"`
}

type stripePayload struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string `json:"id"`
			Amount   int64  `json:"amount"`
			Metadata struct {
				Reference string `json:"reference"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

type flutterwavePayload struct {
	Event string `json:"event"`
	Data  struct {
		TxRef  string  `json:"tx_ref"`
		Amount float64 `json:"amount"`
		Status string  `json:"status"`
	} `json:"data"`
}

// ParseProviderEvent discriminates a raw webhook body into a normalized
// ProviderEvent by payload shape. Stripe bodies carry a "type" field,
// Flutterwave a "tx_ref" inside data, Paystack a "reference" inside data.
// Unrecognized bodies return an event with ProviderUnknown and an error.
func ParseProviderEvent(body []byte) (*ProviderEvent, error) {
	var shape struct {
		Event string `json:"event"`
		Type  string `json:"type"`
		Data  struct {
			Reference string `json:"reference"`
			TxRef     string `json:"tx_ref"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return &ProviderEvent{Provider: ProviderUnknown, Raw: body}, err
	}

	switch {
	case shape.Type != "":
		return parseStripe(body)
	case shape.Event != "" && shape.Data.TxRef != "":
		return parseFlutterwave(body)
	case shape.Event != "" && shape.Data.Reference != "":
		return parsePaystack(body)
	}
	return &ProviderEvent{Provider: ProviderUnknown, Raw: body}, ErrUnrecognizedPayload
}

func parsePaystack(body []byte) (*ProviderEvent, error) {
	var p paystackPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	evt := &ProviderEvent{
		Provider:  ProviderPaystack,
		EventType: p.Event,
		Reference: p.Data.Reference,
		Amount:    p.Data.Amount,
		Raw:       body,
	}
	switch p.Event {
	case "charge.success":
		evt.Succeeded = true
		evt.Terminal = true
	case "charge.failed":
		evt.Terminal = true
	}
	return evt, nil
}

func parseStripe(body []byte) (*ProviderEvent, error) {
	var p stripePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	reference := p.Data.Object.Metadata.Reference
	if reference == "" {
		reference = p.Data.Object.ID
	}
	evt := &ProviderEvent{
		Provider:  ProviderStripe,
		EventType: p.Type,
		Reference: reference,
		Amount:    p.Data.Object.Amount,
		Raw:       body,
	}
	switch p.Type {
	case "payment_intent.succeeded", "checkout.session.completed":
		evt.Succeeded = true
		evt.Terminal = true
	case "payment_intent.payment_failed":
		evt.Terminal = true
	}
	return evt, nil
}

func parseFlutterwave(body []byte) (*ProviderEvent, error) {
	var p flutterwavePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	evt := &ProviderEvent{
		Provider:  ProviderFlutterwave,
		EventType: p.Event,
		Reference: p.Data.TxRef,
		Amount:    int64(p.Data.Amount * 100),
		Raw:       body,
	}
	if p.Event == "charge.completed" {
		evt.Terminal = true
		evt.Succeeded = strings.EqualFold(p.Data.Status, "successful")
	}
	return evt, nil
}
