package hass

import (
	"context"
	"fmt"
	"time"
)

// DefaultSignExpiry is how long a signed path stays valid
const DefaultSignExpiry = 24 * time.Hour

type signPathRequest struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	Expires int64  `json:"expires,omitempty"`
}

type signPathResponse struct {
	Path string `json:"path"`
}

// SignPath asks Home Assistant to sign path so it can be fetched without a bearer token.
func SignPath(ctx context.Context, client Client, path string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = DefaultSignExpiry
	}
	resp, err := Call[signPathResponse](ctx, client, signPathRequest{
		Type:    "auth/sign_path",
		Path:    path,
		Expires: int64(expires.Seconds()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", path, err)
	}
	return resp.Path, nil
}
