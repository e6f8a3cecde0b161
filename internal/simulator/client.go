package simulator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/radieske/pix-webhook-hub/internal/webhook/signature"
)

// Client entrega webhooks assinados no endpoint de ingestão
type Client struct {
	BaseURL string // ex: http://localhost:8090/api/webhooks
	HTTP    *http.Client
}

func NewClient(base string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(base, "/"),
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Send faz o POST do corpo já serializado para /{provider}
func (c *Client) Send(ctx context.Context, providerID string, body []byte, sig string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+providerID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(signature.Header, sig)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode >= 300 {
		return fmt.Errorf("webhook post http %d", res.StatusCode)
	}
	return nil
}
