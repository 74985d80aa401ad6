package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

// RESTAdapter talks to a generic JSON-over-HTTP POS with bearer auth.
type RESTAdapter struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures optional adapter behavior.
type Option func(*RESTAdapter)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *RESTAdapter) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// NewRESTAdapter builds the adapter from resolved credentials.
func NewRESTAdapter(creds Credentials, opts ...Option) (*RESTAdapter, error) {
	base := strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/")
	token := strings.TrimSpace(creds.Token)
	if base == "" || token == "" {
		return nil, configurationError(enums.POSProviderREST, "base url and token are required")
	}

	adapter := &RESTAdapter{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    base,
		token:      token,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter, nil
}

func (a *RESTAdapter) Provider() enums.POSProvider {
	return enums.POSProviderREST
}

func (a *RESTAdapter) PullInventory(ctx context.Context, location models.Location) ([]InventoryLine, error) {
	remoteID, err := remoteLocationID(location)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Items []struct {
			ProductID string `json:"productId"`
			SKU       string `json:"sku"`
			Quantity  int    `json:"quantity"`
		} `json:"items"`
	}
	if err := a.do(ctx, http.MethodGet, a.path("locations", remoteID, "inventory"), nil, &payload); err != nil {
		return nil, err
	}

	lines := make([]InventoryLine, 0, len(payload.Items))
	for _, item := range payload.Items {
		lines = append(lines, InventoryLine{
			ProductID: strings.TrimSpace(item.ProductID),
			SKU:       strings.TrimSpace(item.SKU),
			Quantity:  item.Quantity,
		})
	}
	return lines, nil
}

func (a *RESTAdapter) PullPrices(ctx context.Context, location models.Location) ([]PriceLine, error) {
	remoteID, err := remoteLocationID(location)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Prices []struct {
			ProductID string          `json:"productId"`
			Price     decimal.Decimal `json:"price"`
		} `json:"prices"`
	}
	if err := a.do(ctx, http.MethodGet, a.path("locations", remoteID, "prices"), nil, &payload); err != nil {
		return nil, err
	}

	lines := make([]PriceLine, 0, len(payload.Prices))
	for _, p := range payload.Prices {
		lines = append(lines, PriceLine{ProductID: strings.TrimSpace(p.ProductID), Price: p.Price})
	}
	return lines, nil
}

func (a *RESTAdapter) PushQuantity(ctx context.Context, location models.Location, record models.StockRecord) (bool, error) {
	remoteID, err := remoteLocationID(location)
	if err != nil {
		return false, err
	}
	if record.ExternalProductID == nil || *record.ExternalProductID == "" {
		return false, nil
	}

	body := map[string]int{"quantity": record.Quantity}
	if err := a.do(ctx, http.MethodPut, a.path("locations", remoteID, "inventory", *record.ExternalProductID), body, nil); err != nil {
		return false, err
	}
	return true, nil
}

// ResolveSKU looks up the SKU for a remote product.
func (a *RESTAdapter) ResolveSKU(ctx context.Context, location models.Location, productID string) (string, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	var payload struct {
		ID  string `json:"id"`
		SKU string `json:"sku"`
	}
	if err := a.do(ctx, http.MethodGet, a.path("products", productID), nil, &payload); err != nil {
		return "", err
	}
	return strings.TrimSpace(payload.SKU), nil
}

func (a *RESTAdapter) do(ctx context.Context, method, target string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal pos request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build pos request")
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pos request timed out")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute pos request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(codeForStatus(resp.StatusCode), fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), fmt.Sprintf("pos %s %s failed", method, req.URL.Path))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode pos response")
	}
	return nil
}

func (a *RESTAdapter) path(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return a.baseURL + "/" + strings.Join(escaped, "/")
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeConfiguration
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusRequestTimeout:
		return pkgerrors.CodeDependency
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func remoteLocationID(location models.Location) (string, error) {
	id := strings.TrimSpace(location.ExternalID())
	if id == "" {
		return "", configurationError(location.POSProvider, fmt.Sprintf("location %s has no pos location id", location.ID))
	}
	return id, nil
}
