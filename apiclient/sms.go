package apiclient

import (
	"context"
	"net/http"
)

// Message is an outgoing SMS. Recipients is ignored by the bulk endpoints,
// which address customers by Shop.
type Message struct {
	Recipients []string `json:"recipients,omitempty"`
	Shop       int64    `json:"shop_id,omitempty"`
	Body       string   `json:"message"`
}

type SMS struct {
	client *Client
}

func (s *SMS) Send(ctx context.Context, m Message) error {
	return s.client.Do(ctx, http.MethodPost, "sms/send/", nil, m, nil)
}

// SendToShopCustomers messages every customer of m.Shop.
func (s *SMS) SendToShopCustomers(ctx context.Context, m Message) error {
	return s.client.Do(ctx, http.MethodPost, "sms/send-to-shop/", nil, m, nil)
}

// SendToCreditCustomers messages customers with outstanding credit.
func (s *SMS) SendToCreditCustomers(ctx context.Context, m Message) error {
	return s.client.Do(ctx, http.MethodPost, "sms/send-to-credit/", nil, m, nil)
}

func (s *SMS) SendFreeRefill(ctx context.Context, m Message) error {
	return s.client.Do(ctx, http.MethodPost, "sms/send-free-refill/", nil, m, nil)
}
