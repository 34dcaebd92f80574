package push

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// RelaySubscriber creates subscriptions against the push relay's HTTP
// surface. It is the concrete SubscribeTransport used outside tests.
type RelaySubscriber struct {
	BaseURL string
	HTTP    *http.Client
}

func (s *RelaySubscriber) Subscribe(ctx context.Context, appServerKey []byte, p256dh, auth string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"applicationServerKey": base64.RawURLEncoding.EncodeToString(appServerKey),
		"p256dh":               p256dh,
		"auth":                 auth,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/subscribe", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("relay subscribe: unexpected status %s", resp.Status)
	}

	var out struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("relay subscribe: malformed response: %w", err)
	}
	if out.Endpoint == "" {
		return "", fmt.Errorf("relay subscribe: response carries no endpoint")
	}
	return out.Endpoint, nil
}
