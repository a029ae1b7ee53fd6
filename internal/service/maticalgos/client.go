package maticalgos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"HistPull/internal/domain/models"
	drepo "HistPull/internal/domain/repository"
	"HistPull/internal/service/ratelimit"
	"HistPull/pkg/http"
	"HistPull/pkg/logger"
	"HistPull/pkg/util"
)

const limiterKey = "maticalgos"

// Config holds vendor endpoint and credentials.
type Config struct {
	BaseURL  string
	Email    string
	Password string
	Timeout  time.Duration
	MaxRPS   float64
}

// Option configures Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithLimiter shares a rate limiter between clients.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// Client is a historical data session against the vendor API.
// Fetch is safe for concurrent use once Login has succeeded.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *ratelimit.Limiter
	log     *logger.Logger

	mu    sync.RWMutex
	token string
}

// New creates a vendor client. Login must be called before Fetch.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{cfg: cfg, log: logger.Nop()}
	c.cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	for _, opt := range opts {
		opt(c)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c.http = http.NewClient(http.WithTimeout(timeout))
	if c.limiter == nil {
		c.limiter = ratelimit.New()
	}
	return c
}

var _ drepo.Session = (*Client)(nil)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status  bool   `json:"status"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

type dataResponse struct {
	Status  bool                     `json:"status"`
	Message string                   `json:"message"`
	Data    []map[string]interface{} `json:"data"`
}

// Login authenticates and stores the session token.
func (c *Client) Login(ctx context.Context) error {
	var resp loginResponse
	err := c.http.SendAndParse(ctx, &http.RequestOptions{
		Method: http.MethodPost,
		URL:    c.cfg.BaseURL + "/login",
		Body:   loginRequest{Email: c.cfg.Email, Password: c.cfg.Password},
	}, &resp)
	if err != nil {
		return &models.ConnectionError{Err: fmt.Errorf("login: %w", err)}
	}
	if !resp.Status || resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "login rejected"
		}
		return &models.ConnectionError{Err: errors.New(msg)}
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()

	c.log.Info("vendor session established", logger.String("base_url", c.cfg.BaseURL))
	return nil
}

// Fetch returns all rows the vendor holds for instrument on date.
func (c *Client) Fetch(ctx context.Context, instrument string, date time.Time) ([]models.RawRow, error) {
	fail := func(err error) error {
		return &models.FetchError{Instrument: instrument, Date: date, Err: err}
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token == "" {
		return nil, fail(errors.New("not logged in"))
	}

	if err := c.limiter.Wait(ctx, limiterKey, max(1, c.cfg.MaxRPS), c.cfg.MaxRPS); err != nil {
		return nil, fail(err)
	}

	var body []byte
	err := c.http.SendAndParse(ctx, &http.RequestOptions{
		Method: http.MethodGet,
		URL:    c.cfg.BaseURL + "/historical/data",
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Accept":        "application/json",
		},
		QueryParams: map[string][]string{
			"symbol": {strings.ToLower(instrument)},
			"date":   {date.Format(util.DateLayout)},
		},
	}, &body)
	if err != nil {
		var se *http.StatusError
		if errors.As(err, &se) && se.Code == 401 {
			return nil, fail(models.ErrSessionExpired)
		}
		return nil, fail(err)
	}

	var resp dataResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, fail(fmt.Errorf("decode json: %w", err))
	}
	if !resp.Status && len(resp.Data) == 0 && resp.Message != "" {
		return nil, fail(errors.New(resp.Message))
	}
	if len(resp.Data) == 0 {
		return nil, fail(models.ErrNoData)
	}

	rows := make([]models.RawRow, 0, len(resp.Data))
	for _, obj := range resp.Data {
		rows = append(rows, toRawRow(obj))
	}
	c.log.Debug("rows fetched",
		logger.String("instrument", instrument),
		logger.Date("date", date),
		logger.Int("rows", len(rows)))
	return rows, nil
}

func toRawRow(obj map[string]interface{}) models.RawRow {
	row := make(models.RawRow, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			// absent
		case string:
			row[k] = val
		case json.Number:
			row[k] = val.String()
		case bool:
			row[k] = strconv.FormatBool(val)
		case float64:
			row[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			b, _ := json.Marshal(val)
			row[k] = string(b)
		}
	}
	return row
}
