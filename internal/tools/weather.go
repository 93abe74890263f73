package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const weatherCacheTTL = 10 * time.Minute

// WeatherTool reports current conditions and a short forecast for the
// bridge's configured location, using the Open-Meteo API (no key needed).
type WeatherTool struct {
	lat, lon   float64
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	cached   string
	cachedAt time.Time
}

// NewWeatherTool creates a weather tool for the given coordinates.
func NewWeatherTool(lat, lon float64) *WeatherTool {
	return &WeatherTool{
		lat:     lat,
		lon:     lon,
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *WeatherTool) Name() string { return "get_weather" }

func (t *WeatherTool) Description() string {
	return "Get current weather conditions and a 12-hour forecast for the local area"
}

func (t *WeatherTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// Execute fetches current conditions, serving from a short-lived cache
// so repeated mesh questions don't hammer the API.
func (t *WeatherTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	t.mu.Lock()
	if t.cached != "" && time.Since(t.cachedAt) < weatherCacheTTL {
		cached := t.cached
		t.mu.Unlock()
		return cached, nil
	}
	t.mu.Unlock()

	current, err := t.fetchCurrent(ctx)
	if err != nil {
		return "", fmt.Errorf("weather unavailable: %w", err)
	}
	forecast, err := t.fetchForecast(ctx)
	if err == nil && forecast != "" {
		current = current + "\nNext 12h: " + forecast
	}

	t.mu.Lock()
	t.cached = current
	t.cachedAt = time.Now()
	t.mu.Unlock()
	return current, nil
}

type meteoCurrent struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		FeelsLike   float64 `json:"apparent_temperature"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WindDir     float64 `json:"wind_direction_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

type meteoHourly struct {
	Hourly struct {
		Time        []string  `json:"time"`
		Temperature []float64 `json:"temperature_2m"`
		RainChance  []float64 `json:"precipitation_probability"`
		WeatherCode []int     `json:"weather_code"`
	} `json:"hourly"`
}

func (t *WeatherTool) fetchCurrent(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", t.lat))
	q.Set("longitude", fmt.Sprintf("%.4f", t.lon))
	q.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,weather_code,wind_speed_10m,wind_direction_10m")
	q.Set("temperature_unit", "fahrenheit")
	q.Set("wind_speed_unit", "mph")

	var data meteoCurrent
	if err := t.getJSON(ctx, q, &data); err != nil {
		return "", err
	}
	c := data.Current
	return fmt.Sprintf("%s, %.0f°F (feels %.0f°F), humidity %.0f%%, wind %.0fmph %s",
		weatherCodeDesc(c.WeatherCode), c.Temperature, c.FeelsLike, c.Humidity,
		c.WindSpeed, degreesToCardinal(c.WindDir)), nil
}

func (t *WeatherTool) fetchForecast(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", t.lat))
	q.Set("longitude", fmt.Sprintf("%.4f", t.lon))
	q.Set("hourly", "temperature_2m,precipitation_probability,weather_code")
	q.Set("temperature_unit", "fahrenheit")
	q.Set("forecast_hours", "12")

	var data meteoHourly
	if err := t.getJSON(ctx, q, &data); err != nil {
		return "", err
	}
	h := data.Hourly
	if len(h.Time) < 3 {
		return "", nil
	}

	var parts []string
	for _, i := range []int{0, 3, 6, min(11, len(h.Time)-1)} {
		if i >= len(h.Time) {
			continue
		}
		hhmm := h.Time[i]
		if idx := strings.IndexByte(hhmm, 'T'); idx >= 0 && len(hhmm) >= idx+6 {
			hhmm = hhmm[idx+1 : idx+6]
		}
		part := fmt.Sprintf("%s: %.0f°F %s", hhmm, at(h.Temperature, i), weatherCodeDesc(at(h.WeatherCode, i)))
		if rain := at(h.RainChance, i); rain > 30 {
			part += fmt.Sprintf(" %.0f%% rain", rain)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " | "), nil
}

func (t *WeatherTool) getJSON(ctx context.Context, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", t.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func at[T int | float64](s []T, i int) T {
	if i < len(s) {
		return s[i]
	}
	var zero T
	return zero
}

// weatherCodeDesc converts a WMO weather code to a short description.
func weatherCodeDesc(code int) string {
	switch code {
	case 0:
		return "Clear"
	case 1:
		return "Mostly clear"
	case 2:
		return "Partly cloudy"
	case 3:
		return "Overcast"
	case 45, 48:
		return "Foggy"
	case 51, 53, 55:
		return "Drizzle"
	case 61, 80:
		return "Light rain"
	case 63, 81:
		return "Rain"
	case 65, 82:
		return "Heavy rain"
	case 66, 67:
		return "Freezing rain"
	case 71, 85:
		return "Light snow"
	case 73, 86:
		return "Snow"
	case 75, 77:
		return "Heavy snow"
	case 95:
		return "Thunderstorm"
	case 96, 99:
		return "Severe thunderstorm"
	default:
		return "Unknown"
	}
}

func degreesToCardinal(degrees float64) string {
	directions := []string{
		"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
		"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
	}
	idx := int((degrees+11.25)/22.5) % 16
	if idx < 0 {
		idx += 16
	}
	return directions[idx]
}
