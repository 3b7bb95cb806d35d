// Package webhooks delivers committed ledger events to an external consumer
// as HMAC-SHA256 signed HTTP posts. Delivery is asynchronous and best-effort;
// retry policy belongs to the consumer.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"insurelane/internal/ledger"
)

const (
	SignatureHeader = "X-Signature"
	EventIDHeader   = "X-Event-Id"
	EventTypeHeader = "X-Event-Type"
	Scheme          = "generic-hmac-sha256/v1"
)

type Dispatcher struct {
	url    string
	secret string
	client *http.Client
}

func NewDispatcher(url, secret string) *Dispatcher {
	return &Dispatcher{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Emit hands the event off without waiting for the consumer. The delivery
// deliberately does not inherit the transition's context: the event is
// already committed when it fires.
func (d *Dispatcher) Emit(_ context.Context, ev ledger.Event) {
	go func() {
		if err := d.Deliver(ev); err != nil {
			log.Printf("webhooks: deliver event %s: %v", ev.ID, err)
		}
	}()
}

// Deliver posts one signed event synchronously.
func (d *Dispatcher) Deliver(ev ledger.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set(SignatureHeader, Sign(d.secret, body))
	req.Header.Set(EventIDHeader, ev.ID)
	req.Header.Set(EventTypeHeader, ev.Type)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// Sign computes the hex HMAC-SHA256 body digest the consumer verifies.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
