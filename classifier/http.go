package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/hashicorp/go-retryablehttp"
)

// HTTPClient talks to a remote classifier service.
type HTTPClient struct {
	Client   *http.Client
	Host     string
	APIToken string
}

var _ Classifier = (*HTTPClient)(nil)

type leveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l leveledSlog) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debug(msg, keysAndValues...)
}

// robustHTTPClient has retry logic for connection errors, 5xx (except 501),
// and 429 with Retry-After. Intermediate failures log at WARN.
func robustHTTPClient() *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{slog.Default()})
	client := retryClient.StandardClient()
	client.Timeout = 15 * time.Second
	return client
}

func NewHTTPClient(host, token string) *HTTPClient {
	return &HTTPClient{
		Client:   robustHTTPClient(),
		Host:     host,
		APIToken: token,
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Spam      float64  `json:"spam"`
	Toxicity  float64  `json:"toxicity"`
	Scam      float64  `json:"scam"`
	LinkRisk  float64  `json:"linkRisk"`
	Rationale string   `json:"rationale"`
	Evidence  []string `json:"evidence"`
}

func (c *HTTPClient) Classify(ctx context.Context, text string) (*Verdict, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.Host+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "warden/"+versioninfo.Short())
	if c.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}

	start := time.Now()
	defer func() {
		classifyDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := c.Client.Do(req)
	if err != nil {
		classifyCount.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer res.Body.Close()

	classifyCount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("classifier request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading classifier response: %w", err)
	}

	var respObj classifyResponse
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return nil, fmt.Errorf("parsing classifier response JSON: %w", err)
	}

	v := &Verdict{
		Rationale: respObj.Rationale,
		Evidence:  respObj.Evidence,
	}
	v.Scores.Spam = respObj.Spam
	v.Scores.Toxicity = respObj.Toxicity
	v.Scores.Scam = respObj.Scam
	v.Scores.LinkRisk = respObj.LinkRisk
	v.Scores.Clamp()
	return v, nil
}
