/**
 * @description
 * Client for the tenant directory service. Fee computation consults it for
 * the tenant's trial window when the active fee configuration does not carry
 * one of its own.
 */
package tenantclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tenant is the subset of the directory record the ledger needs.
type Tenant struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	TrialEndDate *time.Time `json:"trial_end_date"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Client is a client for the tenant directory service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new tenant directory client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetTenant fetches a tenant record by ID.
func (c *Client) GetTenant(ctx context.Context, tenantID uuid.UUID) (*Tenant, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("tenant service URL is not configured")
	}

	url := fmt.Sprintf("%s/internal/tenants/%s", c.baseURL, tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Internal-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("tenant %s not found", tenantID)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("tenant service returned status %d", resp.StatusCode)
	}

	var tenant Tenant
	if err := json.NewDecoder(resp.Body).Decode(&tenant); err != nil {
		return nil, fmt.Errorf("failed to parse tenant response: %w", err)
	}
	return &tenant, nil
}
