package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/carescope-ai/platform/pkg/common/models"
)

// Client checks facility claims against an external licensing registry.
// Requests authenticate with OAuth2 client credentials; token refresh is
// handled by the underlying transport.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(ctx context.Context, baseURL, tokenURL, clientID, clientSecret string) (*Client, error) {
	if baseURL == "" || tokenURL == "" || clientID == "" {
		return nil, fmt.Errorf("verification configuration incomplete")
	}

	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"registry.read"},
	}
	httpClient := cc.Client(ctx)
	httpClient.Timeout = 15 * time.Second

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

type registryResponse struct {
	Licensed    bool     `json:"licensed"`
	Specialties []string `json:"specialties"`
	Notes       string   `json:"notes"`
}

// VerifyFacility reports whether the registry licenses the facility for
// every specialty it claims, with a human-readable note either way. A
// registry miss is a negative verification, not an error.
func (c *Client) VerifyFacility(ctx context.Context, f models.Facility) (bool, string, error) {
	endpoint := fmt.Sprintf("%s/registry/facilities/%s", c.baseURL, url.PathEscape(f.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, "", fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, "facility not present in licensing registry", nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, "", fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var reg registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return false, "", fmt.Errorf("decoding registry response: %w", err)
	}
	if !reg.Licensed {
		note := reg.Notes
		if note == "" {
			note = "registry reports facility unlicensed"
		}
		return false, note, nil
	}

	licensed := make(map[string]struct{}, len(reg.Specialties))
	for _, s := range reg.Specialties {
		licensed[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	var unlicensed []string
	for _, claim := range f.Capabilities {
		if _, ok := licensed[strings.ToLower(strings.TrimSpace(claim))]; !ok {
			unlicensed = append(unlicensed, claim)
		}
	}
	if len(unlicensed) > 0 {
		return false, fmt.Sprintf("claims not in registry license: %s", strings.Join(unlicensed, ", ")), nil
	}
	return true, "all claimed specialties licensed", nil
}
