package ipinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/enrich"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultBaseURL is the public ipinfo.io API.
	DefaultBaseURL = "https://ipinfo.io"
	providerName   = "ipinfo"
	checkIP        = "8.8.8.8"
	maxBodyBytes   = 1 << 20
)

// Client implements port.IPLookup against the ipinfo.io JSON API.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewClient creates an ipinfo client from the enrichment config.
func NewClient(cfg *config.EnrichmentConfig) *Client {
	return NewClientWithEndpoint(cfg, cfg.BaseURL)
}

// NewClientWithEndpoint creates a client pointing at a custom base URL (for testing).
func NewClientWithEndpoint(cfg *config.EnrichmentConfig, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		token:   cfg.Token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

// ipinfoResponse models the ipinfo.io JSON payload.
type ipinfoResponse struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Org      string `json:"org"`
	Postal   string `json:"postal"`
	Timezone string `json:"timezone"`
	Bogon    bool   `json:"bogon"`
}

// Lookup fetches geolocation and network data for ip.
func (c *Client) Lookup(ctx context.Context, ip domain.IPKey) (*domain.IPInfo, error) {
	body, err := c.get(ctx, string(ip))
	if err != nil {
		return nil, err
	}

	var resp ipinfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding ipinfo response for %s: %w", ip, err)
	}
	if resp.Bogon {
		return nil, fmt.Errorf("ipinfo: %s: %w", ip, enrich.ErrNotPublic)
	}

	asn, isp := splitOrg(resp.Org)
	info := &domain.IPInfo{
		IP:       resp.IP,
		Hostname: resp.Hostname,
		City:     resp.City,
		Region:   resp.Region,
		Country:  resp.Country,
		Loc:      resp.Loc,
		Postal:   resp.Postal,
		Timezone: resp.Timezone,
		Org:      resp.Org,
		ASN:      asn,
		ISP:      isp,
	}
	if info.IP == "" {
		info.IP = string(ip)
	}
	return info, nil
}

// CheckCredentials looks up a well-known public address with the configured token.
func (c *Client) CheckCredentials(ctx context.Context) error {
	_, err := c.get(ctx, checkIP)
	var lookupErr *enrich.LookupError
	if errors.As(err, &lookupErr) && (lookupErr.StatusCode == http.StatusUnauthorized || lookupErr.StatusCode == http.StatusForbidden) {
		return fmt.Errorf("%w: %v", domain.ErrCredentialsRejected, err)
	}
	return err
}

func (c *Client) get(ctx context.Context, ip string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(ip))
	if c.token != "" {
		endpoint += "?token=" + url.QueryEscape(c.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ipinfo API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &enrich.LookupError{
			StatusCode: resp.StatusCode,
			RetryAfter: enrich.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       domain.Excerpt(strings.TrimSpace(string(body)), 200),
		}
	}
	return body, nil
}

// splitOrg separates ipinfo's "AS15169 Google LLC" into ASN and ISP name.
func splitOrg(org string) (asn, isp string) {
	org = strings.TrimSpace(org)
	head, tail, _ := strings.Cut(org, " ")
	if !isASN(head) {
		return "", org
	}
	return head, strings.TrimSpace(tail)
}

func isASN(s string) bool {
	if len(s) < 3 || !strings.HasPrefix(s, "AS") {
		return false
	}
	for _, r := range s[2:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
