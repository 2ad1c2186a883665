package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/DianaPortal/NTT-AccountService/internal/infra/observability"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// creditProduct is the subset of the Credits API payload we inspect.
type creditProduct struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// CreditsClient checks credit-card holdings against the Credits API.
type CreditsClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
}

// NewCreditsClient creates a new CreditsClient.
func NewCreditsClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics) *CreditsClient {
	return &CreditsClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
		metrics:    metrics,
	}
}

// HasActiveCreditCard reports whether the customer holds at least one active
// credit card, with retry, circuit breaker, and tracing.
func (c *CreditsClient) HasActiveCreditCard(ctx context.Context, customerID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "CreditsClient.HasActiveCreditCard")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	var products []creditProduct

	result, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			q := url.Values{}
			q.Set("customerId", customerID)
			reqURL := fmt.Sprintf("%s/credits?%s", c.baseURL, q.Encode())
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			// No credit products at all counts as "no card".
			if resp.StatusCode == http.StatusNotFound {
				products = nil
				return nil
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("credits API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&products)
		})
		if innerErr != nil {
			return false, innerErr
		}
		for _, p := range products {
			if p.Type == "CREDIT_CARD" && p.Status == "ACTIVE" {
				return true, nil
			}
		}
		return false, nil
	})

	if err != nil {
		return false, mapGatewayError("credits", "HasActiveCreditCard", err, c.metrics)
	}

	return result.(bool), nil
}
