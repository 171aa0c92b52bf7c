/**
 * @description
 * Server-to-server client for the payment providers. Used for the redirect
 * fallback (authenticated status lookup by reference) and for reconciliation
 * sync (listing provider-reported transactions over a date window).
 *
 * Amounts are normalized to minor units on the way in. Paystack and Stripe
 * already report minor units; Flutterwave reports major units.
 */
package providerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
)

const (
	defaultPaystackBaseURL    = "https://api.paystack.co"
	defaultStripeBaseURL      = "https://api.stripe.com"
	defaultFlutterwaveBaseURL = "https://api.flutterwave.com"
)

// Transaction is a provider-reported transaction. The status string is the
// provider's own vocabulary; callers interpret it.
type Transaction struct {
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Date      time.Time `json:"date"`
}

// Secrets holds the per-provider API keys.
type Secrets struct {
	PaystackSecretKey    string
	StripeSecretKey      string
	FlutterwaveSecretKey string
}

// Client multiplexes the three provider APIs behind one interface.
type Client struct {
	secrets            Secrets
	paystackBaseURL    string
	stripeBaseURL      string
	flutterwaveBaseURL string
	httpClient         *http.Client
}

// NewClient creates a provider client with the production base URLs.
func NewClient(secrets Secrets) *Client {
	return &Client{
		secrets:            secrets,
		paystackBaseURL:    defaultPaystackBaseURL,
		stripeBaseURL:      defaultStripeBaseURL,
		flutterwaveBaseURL: defaultFlutterwaveBaseURL,
		httpClient:         &http.Client{Timeout: 15 * time.Second},
	}
}

// VerifyTransaction performs an authenticated status lookup by reference.
func (c *Client) VerifyTransaction(ctx context.Context, provider domain.Provider, reference string) (*Transaction, error) {
	switch provider {
	case domain.ProviderPaystack:
		return c.verifyPaystack(ctx, reference)
	case domain.ProviderStripe:
		return c.verifyStripe(ctx, reference)
	case domain.ProviderFlutterwave:
		return c.verifyFlutterwave(ctx, reference)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

// ListTransactions lists provider-reported transactions in a date window.
func (c *Client) ListTransactions(ctx context.Context, provider domain.Provider, start, end time.Time) ([]Transaction, error) {
	switch provider {
	case domain.ProviderPaystack:
		return c.listPaystack(ctx, start, end)
	case domain.ProviderStripe:
		return c.listStripe(ctx, start, end)
	case domain.ProviderFlutterwave:
		return c.listFlutterwave(ctx, start, end)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

func (c *Client) getJSON(ctx context.Context, rawURL, bearerToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(bearerToken))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) verifyPaystack(ctx context.Context, reference string) (*Transaction, error) {
	var response struct {
		Status bool `json:"status"`
		Data   struct {
			Reference string    `json:"reference"`
			Amount    int64     `json:"amount"`
			Status    string    `json:"status"`
			PaidAt    time.Time `json:"paid_at"`
		} `json:"data"`
	}
	lookupURL := fmt.Sprintf("%s/transaction/verify/%s", c.paystackBaseURL, url.PathEscape(reference))
	if err := c.getJSON(ctx, lookupURL, c.secrets.PaystackSecretKey, &response); err != nil {
		return nil, err
	}
	if !response.Status {
		return nil, fmt.Errorf("paystack rejected verification for %q", reference)
	}
	return &Transaction{
		Reference: response.Data.Reference,
		Amount:    response.Data.Amount,
		Status:    response.Data.Status,
		Date:      response.Data.PaidAt,
	}, nil
}

func (c *Client) listPaystack(ctx context.Context, start, end time.Time) ([]Transaction, error) {
	var response struct {
		Data []struct {
			Reference string    `json:"reference"`
			Amount    int64     `json:"amount"`
			Status    string    `json:"status"`
			PaidAt    time.Time `json:"paid_at"`
		} `json:"data"`
	}
	listURL := fmt.Sprintf("%s/transaction?from=%s&to=%s",
		c.paystackBaseURL,
		url.QueryEscape(start.Format(time.RFC3339)),
		url.QueryEscape(end.Format(time.RFC3339)))
	if err := c.getJSON(ctx, listURL, c.secrets.PaystackSecretKey, &response); err != nil {
		return nil, err
	}

	transactions := make([]Transaction, 0, len(response.Data))
	for _, row := range response.Data {
		transactions = append(transactions, Transaction{
			Reference: row.Reference,
			Amount:    row.Amount,
			Status:    row.Status,
			Date:      row.PaidAt,
		})
	}
	return transactions, nil
}

func (c *Client) verifyStripe(ctx context.Context, reference string) (*Transaction, error) {
	var response struct {
		Data []struct {
			ID       string `json:"id"`
			Amount   int64  `json:"amount"`
			Status   string `json:"status"`
			Created  int64  `json:"created"`
			Metadata struct {
				Reference string `json:"reference"`
			} `json:"metadata"`
		} `json:"data"`
	}
	// Payments are created with our reference in metadata; search brings the
	// intent back by that key.
	query := fmt.Sprintf("metadata['reference']:'%s'", reference)
	lookupURL := fmt.Sprintf("%s/v1/payment_intents/search?query=%s", c.stripeBaseURL, url.QueryEscape(query))
	if err := c.getJSON(ctx, lookupURL, c.secrets.StripeSecretKey, &response); err != nil {
		return nil, err
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("stripe has no payment for reference %q", reference)
	}

	head := response.Data[0]
	return &Transaction{
		Reference: reference,
		Amount:    head.Amount,
		Status:    head.Status,
		Date:      time.Unix(head.Created, 0).UTC(),
	}, nil
}

func (c *Client) listStripe(ctx context.Context, start, end time.Time) ([]Transaction, error) {
	var response struct {
		Data []struct {
			ID       string `json:"id"`
			Amount   int64  `json:"amount"`
			Status   string `json:"status"`
			Created  int64  `json:"created"`
			Metadata struct {
				Reference string `json:"reference"`
			} `json:"metadata"`
		} `json:"data"`
	}
	listURL := fmt.Sprintf("%s/v1/charges?created[gte]=%d&created[lte]=%d&limit=100",
		c.stripeBaseURL, start.Unix(), end.Unix())
	if err := c.getJSON(ctx, listURL, c.secrets.StripeSecretKey, &response); err != nil {
		return nil, err
	}

	transactions := make([]Transaction, 0, len(response.Data))
	for _, row := range response.Data {
		reference := row.Metadata.Reference
		if reference == "" {
			reference = row.ID
		}
		transactions = append(transactions, Transaction{
			Reference: reference,
			Amount:    row.Amount,
			Status:    row.Status,
			Date:      time.Unix(row.Created, 0).UTC(),
		})
	}
	return transactions, nil
}

func (c *Client) verifyFlutterwave(ctx context.Context, reference string) (*Transaction, error) {
	var response struct {
		Status string `json:"status"`
		Data   struct {
			TxRef     string    `json:"tx_ref"`
			Amount    float64   `json:"amount"`
			Status    string    `json:"status"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"data"`
	}
	lookupURL := fmt.Sprintf("%s/v3/transactions/verify_by_reference?tx_ref=%s",
		c.flutterwaveBaseURL, url.QueryEscape(reference))
	if err := c.getJSON(ctx, lookupURL, c.secrets.FlutterwaveSecretKey, &response); err != nil {
		return nil, err
	}
	if response.Status != "success" {
		return nil, fmt.Errorf("flutterwave rejected verification for %q", reference)
	}
	return &Transaction{
		Reference: response.Data.TxRef,
		Amount:    int64(math.Round(response.Data.Amount * 100)),
		Status:    response.Data.Status,
		Date:      response.Data.CreatedAt,
	}, nil
}

func (c *Client) listFlutterwave(ctx context.Context, start, end time.Time) ([]Transaction, error) {
	var response struct {
		Status string `json:"status"`
		Data   []struct {
			TxRef     string    `json:"tx_ref"`
			Amount    float64   `json:"amount"`
			Status    string    `json:"status"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"data"`
	}
	listURL := fmt.Sprintf("%s/v3/transactions?from=%s&to=%s",
		c.flutterwaveBaseURL, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err := c.getJSON(ctx, listURL, c.secrets.FlutterwaveSecretKey, &response); err != nil {
		return nil, err
	}

	transactions := make([]Transaction, 0, len(response.Data))
	for _, row := range response.Data {
		transactions = append(transactions, Transaction{
			Reference: row.TxRef,
			Amount:    int64(math.Round(row.Amount * 100)),
			Status:    row.Status,
			Date:      row.CreatedAt,
		})
	}
	return transactions, nil
}
