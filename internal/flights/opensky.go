package flights

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultOpenSkyURL = "https://opensky-network.org/api"

// Flight is one airborne or taxiing aircraft as shown on the globe and ticker.
type Flight struct {
	ID           string  `json:"id"`
	Callsign     string  `json:"callsign"`
	Country      string  `json:"country"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Altitude     float64 `json:"altitude"`
	Velocity     float64 `json:"velocity"`
	VerticalRate float64 `json:"vertical_rate"`
	OnGround     bool    `json:"on_ground"`
}

type OpenSkyConfig struct {
	BaseURL string
	Timeout time.Duration
	// MinInterval spaces upstream calls; anonymous OpenSky users get 10s resolution.
	MinInterval time.Duration
}

// OpenSkyClient reads state vectors from the OpenSky Network REST API.
type OpenSkyClient struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
}

func NewOpenSkyClient(cfg OpenSkyConfig) *OpenSkyClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultOpenSkyURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 10 * time.Second
	}
	return &OpenSkyClient{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
	}
}

type statesResponse struct {
	Time   int64   `json:"time"`
	States [][]any `json:"states"`
}

// States fetches all current state vectors and keeps those with a position and
// barometric altitude. Order follows the upstream response.
func (c *OpenSkyClient) States(ctx context.Context) ([]Flight, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("opensky rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/states/all", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("opensky http status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload statesResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode states: %w", err)
	}
	return parseStates(payload.States), nil
}

func parseStates(states [][]any) []Flight {
	out := make([]Flight, 0, len(states))
	for _, s := range states {
		if len(s) < 12 {
			continue
		}
		lon, lat, alt := asFloat(s[5]), asFloat(s[6]), asFloat(s[7])
		if lon == 0 || lat == 0 || alt == 0 {
			continue
		}
		out = append(out, Flight{
			ID:           asString(s[0]),
			Callsign:     strings.TrimSpace(asString(s[1])),
			Country:      asString(s[2]),
			Longitude:    lon,
			Latitude:     lat,
			Altitude:     alt,
			OnGround:     asBool(s[8]),
			Velocity:     asFloat(s[9]),
			VerticalRate: asFloat(s[11]),
		})
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
