package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

// Scene is one satellite acquisition returned by a catalog search, with the
// asset location of every band it exposes.
type Scene struct {
	ID         string
	CloudCover float64
	Assets     map[string]string
}

// AssetHref returns the asset location for a band, ok=false when the scene
// does not carry it.
func (s Scene) AssetHref(band string) (string, bool) {
	href, ok := s.Assets[band]
	return href, ok
}

// Searcher resolves a bounding box, date range and cloud-cover ceiling to a
// set of scene references. An empty result is not an error.
type Searcher interface {
	Search(ctx context.Context, bound orb.Bound, start, end time.Time, maxCloudCover float64) ([]Scene, error)
}

// STACClient talks to a STAC API search endpoint. When tokenURL is set the
// client authenticates with OAuth2 client credentials, as required by some
// imagery providers.
type STACClient struct {
	url        string
	collection string
	http       *http.Client
	retries    int
	log        *zap.Logger
}

type Options struct {
	URL          string
	Collection   string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Retries      int
	Timeout      time.Duration
	Logger       *zap.Logger
}

func NewSTACClient(opts Options) *STACClient {
	httpClient := &http.Client{Timeout: opts.Timeout}
	if opts.TokenURL != "" {
		config := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
		}
		httpClient = config.Client(context.Background())
		httpClient.Timeout = opts.Timeout
	}
	retries := opts.Retries
	if retries < 1 {
		retries = 1
	}
	return &STACClient{
		url:        opts.URL,
		collection: opts.Collection,
		http:       httpClient,
		retries:    retries,
		log:        opts.Logger,
	}
}

type searchRequest struct {
	Collections []string               `json:"collections"`
	Bbox        [4]float64             `json:"bbox"`
	Datetime    string                 `json:"datetime"`
	Query       map[string]interface{} `json:"query,omitempty"`
	Limit       int                    `json:"limit"`
}

type searchResponse struct {
	Features []stacItem `json:"features"`
}

type stacItem struct {
	ID         string               `json:"id"`
	Properties stacItemProperties   `json:"properties"`
	Assets     map[string]stacAsset `json:"assets"`
}

type stacItemProperties struct {
	CloudCover float64 `json:"eo:cloud_cover"`
}

type stacAsset struct {
	Href string `json:"href"`
}

func (c *STACClient) Search(ctx context.Context, bound orb.Bound, start, end time.Time, maxCloudCover float64) ([]Scene, error) {
	payload := searchRequest{
		Collections: []string{c.collection},
		Bbox:        [4]float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]},
		Datetime:    fmt.Sprintf("%s/%s", start.Format("2006-01-02"), end.Format("2006-01-02")),
		Query: map[string]interface{}{
			"eo:cloud_cover": map[string]float64{"lt": maxCloudCover},
		},
		Limit: 100,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		scenes, err := c.search(ctx, body)
		if err == nil {
			return scenes, nil
		}
		lastErr = err
		c.log.Warn("catalog search attempt failed",
			zap.Int("attempt", attempt), zap.Error(err))
		if attempt < c.retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	return nil, fmt.Errorf("catalog search failed after %d attempts: %w", c.retries, lastErr)
}

func (c *STACClient) search(ctx context.Context, body []byte) ([]Scene, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, detail)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	scenes := make([]Scene, 0, len(parsed.Features))
	for _, item := range parsed.Features {
		assets := make(map[string]string, len(item.Assets))
		for name, asset := range item.Assets {
			assets[name] = asset.Href
		}
		scenes = append(scenes, Scene{
			ID:         item.ID,
			CloudCover: item.Properties.CloudCover,
			Assets:     assets,
		})
	}
	return scenes, nil
}
