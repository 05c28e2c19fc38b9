package contentrepo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/commons-social/warden/mods"
)

// HTTPContentRepo talks to a remote feed store over its moderation API.
type HTTPContentRepo struct {
	Client *http.Client
	Host   string
}

var _ ContentRepo = (*HTTPContentRepo)(nil)

func NewHTTPContentRepo(host string) *HTTPContentRepo {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	client := retryClient.StandardClient()
	client.Timeout = 10 * time.Second
	return &HTTPContentRepo{
		Client: client,
		Host:   host,
	}
}

func (r *HTTPContentRepo) ListItems(ctx context.Context, scopeID string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/v1/scopes/%s/items", r.Host, scopeID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "warden/"+versioninfo.Short())

	res, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content repo list failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("content repo list failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading content repo response: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(respBytes, &items); err != nil {
		return nil, fmt.Errorf("parsing content repo response JSON: %w", err)
	}
	return items, nil
}

type markRequest struct {
	Action mods.ActionKind `json:"action"`
	Note   string          `json:"note,omitempty"`
}

func (r *HTTPContentRepo) MarkModerationState(ctx context.Context, scopeID, itemID string, action mods.ActionKind, note string) error {
	body, err := json.Marshal(markRequest{Action: action, Note: note})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/v1/scopes/%s/items/%s/moderation", r.Host, scopeID, itemID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "warden/"+versioninfo.Short())

	res, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("content repo mark failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 && res.StatusCode != 204 {
		return fmt.Errorf("content repo mark failed statusCode=%d", res.StatusCode)
	}
	return nil
}
