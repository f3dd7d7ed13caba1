package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// HttpClient resolves identities against an external identity service that
// proxies chain storage.
type HttpClient struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewHttpClient(endpoint string, l *zap.Logger) *HttpClient {
	return &HttpClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   l,
	}
}

type identityRequest struct {
	Accounts []string `json:"accounts"`
}

func (c *HttpClient) FetchIdentities(ctx context.Context, accountIDs []string) ([]*Record, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(&identityRequest{Accounts: accountIDs})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode identity request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build identity request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "identity request failed")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("identity service returned status %d", res.StatusCode)
	}

	records := make([]*Record, 0, len(accountIDs))
	if err := json.NewDecoder(res.Body).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "failed to decode identity response")
	}

	c.logger.Sugar().Debugw("Fetched identities",
		zap.Int("requested", len(accountIDs)),
		zap.Int("resolved", len(records)),
	)
	return records, nil
}
