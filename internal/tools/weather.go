package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultWeatherURL is the open-meteo forecast endpoint.
const DefaultWeatherURL = "https://api.open-meteo.com/v1/forecast"

// WeatherInput defines input for the getWeather tool.
type WeatherInput struct {
	Latitude  float64 `json:"latitude" jsonschema_description:"Latitude of the location"`
	Longitude float64 `json:"longitude" jsonschema_description:"Longitude of the location"`
}

// GetWeather fetches the current forecast for the given coordinates and
// returns the provider payload unmodified, so the model can pick out the
// fields it needs.
func (h *Handler) GetWeather(ctx context.Context, in WeatherInput) (map[string]any, error) {
	if err := validateCoordinate("latitude", in.Latitude, 90); err != nil {
		return nil, err
	}
	if err := validateCoordinate("longitude", in.Longitude, 180); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(in.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(in.Longitude, 'f', -1, 64))
	q.Set("current", "temperature_2m")
	q.Set("hourly", "temperature_2m")
	q.Set("daily", "sunrise,sunset")
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.weatherURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building weather request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("weather service returned %d: %s", resp.StatusCode, snippet)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding weather response: %w", err)
	}
	return payload, nil
}

// validateCoordinate rejects non-finite and out-of-range values before they
// reach the weather API.
func validateCoordinate(name string, v, limit float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be a finite number", name)
	}
	if v < -limit || v > limit {
		return fmt.Errorf("%s %v out of range [-%v, %v]", name, v, limit, limit)
	}
	return nil
}
