package practicum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"homework-bot/internal/domain"
	"homework-bot/internal/infra/metrics"
)

const defaultTimeout = 10 * time.Second

// Client запрашивает статусы домашних работ.
type Client struct {
	endpoint   *url.URL
	token      string
	httpClient *http.Client
}

var _ domain.StatusFetcher = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New создаёт клиента для endpoint с OAuth-токеном.
func New(endpoint, token string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	client := &Client{
		endpoint:   parsed,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// requestInfo описывает запрос для текстов ошибок. Токен в заголовке скрыт.
type requestInfo struct {
	endpoint string
	fromDate int64
}

func (r requestInfo) String() string {
	return fmt.Sprintf("endpoint: %s, headers: {Authorization: OAuth ***}, params: {from_date: %d}", r.endpoint, r.fromDate)
}

// Fetch выполняет GET-запрос с параметром from_date и возвращает декодированное тело ответа.
func (c *Client) Fetch(ctx context.Context, fromDate int64) (any, error) {
	info := requestInfo{endpoint: c.endpoint.String(), fromDate: fromDate}

	resolved := *c.endpoint
	query := resolved.Query()
	query.Set("from_date", strconv.FormatInt(fromDate, 10))
	resolved.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("practicum", "homework_statuses", c.endpoint.Host, start, err)
		return nil, fmt.Errorf("%w: %v. %s", domain.ErrConnection, err, info)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("practicum", "homework_statuses", c.endpoint.Host, start, err)
		return nil, fmt.Errorf("%w: чтение ответа: %v. %s", domain.ErrConnection, err, info)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: status_code: %d, %s", domain.ErrStatusCode, resp.StatusCode, info)
		metrics.ObserveNetworkRequest("practicum", "homework_statuses", c.endpoint.Host, start, err)
		return nil, err
	}

	body, err := decode(data)
	if err != nil {
		err = fmt.Errorf("%w: не удалось разобрать JSON: %v. status_code: %d, %s", domain.ErrResponse, err, resp.StatusCode, info)
		metrics.ObserveNetworkRequest("practicum", "homework_statuses", c.endpoint.Host, start, err)
		return nil, err
	}

	if obj, ok := body.(map[string]any); ok {
		for _, key := range []string{domain.KeyError, domain.KeyCode} {
			if reason, found := obj[key]; found {
				err := fmt.Errorf("%w: %v. status_code: %d, %s", domain.ErrResponse, reason, resp.StatusCode, info)
				metrics.ObserveNetworkRequest("practicum", "homework_statuses", c.endpoint.Host, start, err)
				return nil, err
			}
		}
	}

	metrics.ObserveNetworkRequest("practicum", "homework_statuses", c.endpoint.Host, start, nil)
	return body, nil
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}
