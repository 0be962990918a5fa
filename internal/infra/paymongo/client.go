// Package paymongo integrates the PayMongo payment provider: an HTTP client
// for checkout sources and charges, and the webhook event envelope.
package paymongo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"courtbook/internal/pkg/config"
	"courtbook/internal/pkg/errs"
)

var (
	ErrProviderUnavailable = errs.New("payment provider unavailable")
	ErrProviderRejected    = errs.New("payment provider rejected the request")
)

type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

func NewClient(cfg config.PaymentsConfig) *Client {
	token := base64.StdEncoding.EncodeToString([]byte(cfg.SecretKey + ":"))
	return &Client{
		baseURL:    cfg.BaseURL,
		authHeader: "Basic " + token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Source is a checkout intent: the user completes payment at CheckoutURL
// and the provider later reports source.chargeable.
type Source struct {
	ID          string
	CheckoutURL string
}

type CreateSourceInput struct {
	AmountCents int64
	Currency    string
	SourceType  string
	SuccessURL  string
	FailedURL   string
	// Metadata rides along on the source and echoes back in webhook events.
	Metadata map[string]string
}

func (c *Client) CreateSource(ctx context.Context, in CreateSourceInput) (*Source, error) {
	body := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"amount":   in.AmountCents,
				"currency": in.Currency,
				"type":     in.SourceType,
				"redirect": map[string]string{
					"success": in.SuccessURL,
					"failed":  in.FailedURL,
				},
				"metadata": in.Metadata,
			},
		},
	}

	var out struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Redirect struct {
					CheckoutURL string `json:"checkout_url"`
				} `json:"redirect"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/sources", body, &out); err != nil {
		return nil, err
	}
	return &Source{ID: out.Data.ID, CheckoutURL: out.Data.Attributes.Redirect.CheckoutURL}, nil
}

// Charge is the provider-side capture of a chargeable source.
type Charge struct {
	ID     string
	Status string
}

type CreateChargeInput struct {
	SourceID    string
	AmountCents int64
	Currency    string
	Description string
}

func (c *Client) CreateCharge(ctx context.Context, in CreateChargeInput) (*Charge, error) {
	body := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"amount":      in.AmountCents,
				"currency":    in.Currency,
				"description": in.Description,
				"source": map[string]string{
					"id":   in.SourceID,
					"type": "source",
				},
			},
		},
	}

	var out struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Status string `json:"status"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/payments", body, &out); err != nil {
		return nil, err
	}
	return &Charge{ID: out.Data.ID, Status: out.Data.Attributes.Status}, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.Wrap(err, "failed to encode provider request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errs.Wrap(err, "failed to build provider request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Mark(errs.Wrap(err, "provider request failed"), ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errs.Mark(errs.Wrap(err, "failed to read provider response"), ErrProviderUnavailable)
	}

	switch {
	case resp.StatusCode >= 500:
		return errs.Mark(errs.Newf("provider returned %d", resp.StatusCode), ErrProviderUnavailable)
	case resp.StatusCode >= 400:
		return errs.Mark(
			errs.Newf("provider returned %d: %s", resp.StatusCode, truncate(respBody, 256)),
			ErrProviderRejected,
		)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.Wrap(err, "failed to decode provider response")
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s...", b[:n])
}
