package route

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"backend-carbondrive/internal/emission"
	"backend-carbondrive/internal/shared/geo"
)

// DefaultGoogleBaseURL is the Distance Matrix API host.
const DefaultGoogleBaseURL = "https://maps.googleapis.com"

// GoogleProvider queries the Google Distance Matrix API, one origin and one
// destination per request.
type GoogleProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGoogleProvider(apiKey, baseURL string, client *http.Client) *GoogleProvider {
	if baseURL == "" {
		baseURL = DefaultGoogleBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleProvider{apiKey: apiKey, baseURL: baseURL, client: client}
}

type matrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value float64 `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

func (g *GoogleProvider) Leg(ctx context.Context, from, to geo.Point, mode emission.TransportMode) (Leg, error) {
	if g.apiKey == "" {
		return Leg{}, fmt.Errorf("%w: missing api key", ErrProviderUnavailable)
	}

	q := url.Values{}
	q.Set("origins", formatPoint(from))
	q.Set("destinations", formatPoint(to))
	q.Set("mode", travelMode(mode))
	q.Set("units", "metric")
	q.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/maps/api/distancematrix/json?"+q.Encode(), nil)
	if err != nil {
		return Leg{}, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return Leg{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Leg{}, fmt.Errorf("distance matrix http status %d", resp.StatusCode)
	}

	var body matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Leg{}, fmt.Errorf("decode distance matrix: %w", err)
	}
	if body.Status != "OK" {
		return Leg{}, fmt.Errorf("distance matrix status %s: %s", body.Status, body.ErrorMessage)
	}
	if len(body.Rows) == 0 || len(body.Rows[0].Elements) == 0 {
		return Leg{}, fmt.Errorf("distance matrix returned no elements")
	}
	el := body.Rows[0].Elements[0]
	if el.Status != "OK" {
		return Leg{}, fmt.Errorf("distance matrix element status %s", el.Status)
	}
	return Leg{DistanceM: el.Distance.Value, DurationS: el.Duration.Value}, nil
}

func formatPoint(p geo.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}
