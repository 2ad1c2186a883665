package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/DianaPortal/NTT-AccountService/internal/domain"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/observability"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// CustomersClient fetches holder eligibility from the Customers API.
type CustomersClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
}

// NewCustomersClient creates a new CustomersClient.
func NewCustomersClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics) *CustomersClient {
	return &CustomersClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
		metrics:    metrics,
	}
}

// GetEligibility fetches the eligibility snapshot for a holder document with
// retry, circuit breaker, and tracing. A 404 means there is no active
// customer for the document.
func (c *CustomersClient) GetEligibility(ctx context.Context, documentType, documentNumber string) (*domain.Eligibility, error) {
	ctx, span := tracer.Start(ctx, "CustomersClient.GetEligibility")
	defer span.End()
	span.SetAttributes(attribute.String("customer.document", documentNumber))

	var elig domain.Eligibility

	result, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			q := url.Values{}
			q.Set("documentType", documentType)
			q.Set("documentNumber", documentNumber)
			reqURL := fmt.Sprintf("%s/customers/eligibility?%s", c.baseURL, q.Encode())
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return &domain.ErrNotFound{Resource: "eligibility", ID: documentNumber}
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("customers API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&elig)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &elig, nil
	})

	if err != nil {
		return nil, mapGatewayError("customers", "GetEligibility", err, c.metrics)
	}

	return result.(*domain.Eligibility), nil
}

// mapGatewayError translates transport failures into domain errors. Not-found
// passes through untouched so callers can distinguish it from outages.
func mapGatewayError(service, operation string, err error, metrics *observability.Metrics) error {
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return notFound
	}

	metrics.IncrExternalError(service)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: service}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: operation}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}
