package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/analogfan/marketplace-backend/pkg/config"
	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
	"github.com/analogfan/marketplace-backend/pkg/types"
)

const (
	defaultBaseURL             = "https://panel.sendcloud.sc/api/v2/"
	defaultSenderAddressID     = 1
	fallbackShippingMethodID   = 8
	errorBodyReadLimit   int64 = 2048
)

var (
	houseNumberPattern    = regexp.MustCompile(`\d+[a-zA-Z]?$`)
	shippingMethodPattern = regexp.MustCompile(`sendcloud_(\d+)`)
	fallbackRateAmount    = decimal.RequireFromString("6.95")
)

// SendcloudClient talks to the Sendcloud v2 REST API using basic auth.
type SendcloudClient struct {
	httpClient *http.Client
	baseURL    string
	publicKey  string
	secretKey  string
}

// Option configures optional client behavior.
type Option func(*SendcloudClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *SendcloudClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewSendcloudClient builds the Sendcloud gateway from configuration.
func NewSendcloudClient(cfg config.CarrierConfig, opts ...Option) (*SendcloudClient, error) {
	if !cfg.Configured() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sendcloud api keys not configured")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := &SendcloudClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		publicKey:  cfg.PublicKey,
		secretKey:  cfg.SecretKey,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// GetRates lists shipping offers for the destination. Dutch and Belgian
// destinations are filtered to PostNL methods; when the vendor returns no
// usable method a standard PostNL rate is offered so checkout can proceed.
func (c *SendcloudClient) GetRates(ctx context.Context, to types.Address) ([]Rate, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sendcloud client not configured")
	}

	country := to.NormalizedCountry()
	isDomestic := country == "NL" || country == "BE"

	query := url.Values{}
	query.Set("sender_address", strconv.Itoa(defaultSenderAddressID))
	query.Set("to_country", country)

	var apiResp struct {
		ShippingMethods []struct {
			ID                int64   `json:"id"`
			Name              string  `json:"name"`
			Carrier           string  `json:"carrier"`
			Price             float64 `json:"price"`
			ServicePointInput string  `json:"service_point_input"`
		} `json:"shipping_methods"`
	}
	if err := c.get(ctx, "shipping_methods", query, &apiResp); err != nil {
		return nil, err
	}

	rates := make([]Rate, 0, len(apiResp.ShippingMethods))
	for _, method := range apiResp.ShippingMethods {
		if isDomestic && !strings.Contains(strings.ToLower(method.Carrier), "postnl") {
			continue
		}
		amount := decimal.NewFromFloat(method.Price).Round(2)
		if amount.IsZero() {
			amount = fallbackRateAmount
		}
		estimatedDays := 1
		if method.ServicePointInput == "required" {
			estimatedDays = 2
		}
		rates = append(rates, Rate{
			ID:               fmt.Sprintf("sendcloud_%d", method.ID),
			Carrier:          method.Carrier,
			CarrierCode:      strings.ToLower(method.Carrier),
			Service:          method.Name,
			ShippingMethodID: method.ID,
			Amount:           amount,
			Currency:         "EUR",
			EstimatedDays:    estimatedDays,
		})
	}

	if len(rates) == 0 {
		rates = append(rates, standardRate())
	}

	return rates, nil
}

// CreateLabel announces a parcel with request_label enabled and returns the
// purchased label metadata.
func (c *SendcloudClient) CreateLabel(ctx context.Context, to types.Address, rateID string, opts LabelOptions) (*Label, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sendcloud client not configured")
	}
	if strings.TrimSpace(rateID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate ID is required")
	}

	name := strings.TrimSpace(to.Name)
	if name == "" {
		name = "Customer"
	}
	houseNumber := strings.TrimSpace(to.HouseNumber)
	if houseNumber == "" {
		houseNumber = extractHouseNumber(to.Street1)
	}
	orderNumber := opts.OrderNumber
	if orderNumber == "" {
		orderNumber = fmt.Sprintf("parcel-%d", time.Now().UnixNano())
	}

	payload := map[string]any{
		"parcel": map[string]any{
			"name":              name,
			"address":           to.Street1,
			"house_number":      houseNumber,
			"city":              to.City,
			"postal_code":       to.Zip,
			"country":           to.NormalizedCountry(),
			"email":             to.Email,
			"telephone":         to.Phone,
			"request_label":     true,
			"shipment":          map[string]any{"id": shippingMethodIDFromRate(rateID)},
			"order_number":      orderNumber,
			"insured_value":     0,
			"total_order_value": opts.TotalValue.StringFixed(2),
			"weight":            "1.000",
		},
	}

	var apiResp struct {
		Parcel *struct {
			ID             int64  `json:"id"`
			TrackingNumber string `json:"tracking_number"`
			TrackingURL    string `json:"tracking_url"`
			Carrier        struct {
				Code string `json:"code"`
			} `json:"carrier"`
			Shipment struct {
				Name string `json:"name"`
			} `json:"shipment"`
			Status struct {
				Message string `json:"message"`
			} `json:"status"`
			Label struct {
				NormalPrinter []string `json:"normal_printer"`
			} `json:"label"`
		} `json:"parcel"`
	}
	if err := c.post(ctx, "parcels", payload, &apiResp); err != nil {
		return nil, err
	}
	if apiResp.Parcel == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sendcloud returned no parcel data")
	}

	parcel := apiResp.Parcel
	labelURL := ""
	if len(parcel.Label.NormalPrinter) > 0 {
		labelURL = parcel.Label.NormalPrinter[0]
	}
	carrierCode := parcel.Carrier.Code
	if carrierCode == "" {
		carrierCode = "postnl"
	}
	service := parcel.Shipment.Name
	if service == "" {
		service = "Standard delivery"
	}
	status := parcel.Status.Message
	if status == "" {
		status = "PENDING"
	}

	return &Label{
		TransactionID:  strconv.FormatInt(parcel.ID, 10),
		TrackingNumber: parcel.TrackingNumber,
		TrackingURL:    parcel.TrackingURL,
		LabelURL:       labelURL,
		Carrier:        carrierCode,
		Service:        service,
		Status:         status,
	}, nil
}

// GetTrackingInfo looks up the parcel by tracking number. An unknown tracking
// number yields a snapshot with status UNKNOWN rather than an error.
func (c *SendcloudClient) GetTrackingInfo(ctx context.Context, trackingNumber, postalCode string) (*TrackingSnapshot, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sendcloud client not configured")
	}
	if strings.TrimSpace(trackingNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
	}

	query := url.Values{}
	query.Set("tracking_number", trackingNumber)

	var apiResp struct {
		Parcels []struct {
			TrackingURL string `json:"tracking_url"`
			Carrier     struct {
				Code string `json:"code"`
			} `json:"carrier"`
			Status struct {
				Message string `json:"message"`
			} `json:"status"`
			StatusHistory json.RawMessage `json:"status_history"`
		} `json:"parcels"`
	}
	if err := c.get(ctx, "parcels", query, &apiResp); err != nil {
		return nil, err
	}

	if len(apiResp.Parcels) == 0 {
		return &TrackingSnapshot{
			TrackingNumber: trackingNumber,
			Carrier:        "postnl",
			Status:         "UNKNOWN",
		}, nil
	}

	parcel := apiResp.Parcels[0]
	carrierCode := parcel.Carrier.Code
	if carrierCode == "" {
		carrierCode = "postnl"
	}
	status := parcel.Status.Message
	if status == "" {
		status = "UNKNOWN"
	}

	return &TrackingSnapshot{
		TrackingNumber: trackingNumber,
		Carrier:        carrierCode,
		Status:         status,
		TrackingURL:    parcel.TrackingURL,
		History:        parcel.StatusHistory,
	}, nil
}

// DownloadLabel fetches the label PDF bytes. Label URLs are absolute and
// require the same basic auth as the API.
func (c *SendcloudClient) DownloadLabel(ctx context.Context, labelURL string) ([]byte, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sendcloud client not configured")
	}
	if strings.TrimSpace(labelURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label URL is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, labelURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build label download request")
	}
	req.SetBasicAuth(c.publicKey, c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute label download request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp, "label download request failed")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read label download response")
	}
	return data, nil
}

func (c *SendcloudClient) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.buildURL(path)
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("build %s request", path))
	}
	return c.do(req, path, out)
}

func (c *SendcloudClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("marshal %s request", path))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path), bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("build %s request", path))
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *SendcloudClient) do(req *http.Request, path string, out any) error {
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.publicKey, c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("execute %s request", path))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.statusError(resp, fmt.Sprintf("%s request failed", path))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", path))
	}
	return nil
}

func (c *SendcloudClient) statusError(resp *http.Response, msg string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	return pkgerrors.Wrap(pkgerrors.CodeDependency,
		fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), msg)
}

func (c *SendcloudClient) buildURL(path string) string {
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func standardRate() Rate {
	return Rate{
		ID:               "sendcloud_standard",
		Carrier:          "PostNL",
		CarrierCode:      "postnl",
		Service:          "Standard delivery",
		ShippingMethodID: fallbackShippingMethodID,
		Amount:           fallbackRateAmount,
		Currency:         "EUR",
		EstimatedDays:    1,
	}
}

func extractHouseNumber(street string) string {
	if match := houseNumberPattern.FindString(strings.TrimSpace(street)); match != "" {
		return match
	}
	return "1"
}

func shippingMethodIDFromRate(rateID string) int64 {
	if matches := shippingMethodPattern.FindStringSubmatch(rateID); len(matches) == 2 {
		if id, err := strconv.ParseInt(matches[1], 10, 64); err == nil {
			return id
		}
	}
	return fallbackShippingMethodID
}
