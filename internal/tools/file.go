package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"strings"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// ExifToolTool extracts file metadata by shelling out to exiftool, with GPS
// reverse geocoding via Nominatim when coordinates are present.
type ExifToolTool struct {
	Client       *http.Client // nil disables reverse geocoding
	NominatimURL string       // override for tests
}

func (t *ExifToolTool) Name() string      { return "ExifTool" }
func (t *ExifToolTool) Category() string  { return "general" }
func (t *ExifToolTool) PremiumOnly() bool { return false }

func (t *ExifToolTool) Run(ctx context.Context, value string) (*Result, error) {
	cmd := exec.CommandContext(ctx, "exiftool", "-j", "-n", value)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("exiftool timed out: %w", ctx.Err())
		}
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, fmt.Errorf("exiftool not installed: %w", err)
		}
	}

	var metadataList []map[string]any
	if err := json.Unmarshal(out, &metadataList); err != nil || len(metadataList) == 0 {
		return nil, fmt.Errorf("exiftool: could not parse output for %s", value)
	}
	metadata := metadataList[0]

	make_ := stringField(metadata, "Make", "")
	model := stringField(metadata, "Model", "")
	software := stringField(metadata, "Software", "")
	timestamp := stringField(metadata, "DateTimeOriginal", "")
	if timestamp == "" {
		timestamp = stringField(metadata, "CreateDate", "")
	}

	device := strings.TrimSpace(make_ + " " + model)
	if device == "" {
		device = "Unknown"
	}

	lat, latOK := metadata["GPSLatitude"].(float64)
	lon, lonOK := metadata["GPSLongitude"].(float64)
	if !latOK || !lonOK {
		if software == "" {
			software = "Unknown"
		}
		return &Result{
			ToolName: t.Name(),
			Category: t.Category(),
			RawData: models.RawData{
				"device":       map[string]any{"make": make_, "model": model},
				"software":     software,
				"timestamp":    timestamp,
				"all_metadata": metadata,
			},
			Summary:  fmt.Sprintf("Device: %s. Software: %s. No GPS data found.", device, software),
			Severity: models.SeverityInfo,
			Tags:     models.Tags{"file", "metadata", "exiftool"},
		}, nil
	}

	mapsURL := fmt.Sprintf("https://www.google.com/maps?q=%v,%v", lat, lon)
	address := fmt.Sprintf("%v, %v", lat, lon)
	reverseGeo := map[string]any{"address": address}

	if t.Client != nil {
		if geo, err := t.reverseGeocode(ctx, lat, lon); err == nil {
			reverseGeo = geo
			if a, ok := geo["address"].(string); ok && a != "" {
				address = a
			}
		} else {
			reverseGeo = map[string]any{"address": address, "error": err.Error()}
		}
	}

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData: models.RawData{
			"gps_coordinates":  map[string]any{"lat": lat, "lon": lon},
			"google_maps_url":  mapsURL,
			"reverse_geocoded": reverseGeo,
			"device":           map[string]any{"make": make_, "model": model},
			"software":         software,
			"timestamp":        timestamp,
			"all_metadata":     metadata,
		},
		Summary: fmt.Sprintf("LOCATION DETECTED: %s. Device: %s. Photo taken: %s. Maps: %s",
			address, device, timestamp, mapsURL),
		Severity: models.SeverityHigh,
		Tags:     models.Tags{"file", "metadata", "exiftool", "gps", "location", "GEOLOCATION"},
	}, nil
}

func (t *ExifToolTool) reverseGeocode(ctx context.Context, lat, lon float64) (map[string]any, error) {
	base := t.NominatimURL
	if base == "" {
		base = "https://nominatim.openstreetmap.org"
	}
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", fmt.Sprintf("%v", lat))
	q.Set("lon", fmt.Sprintf("%v", lon))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ValkyrieOSINT/1.0")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var geo struct {
		DisplayName string         `json:"display_name"`
		Address     map[string]any `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&geo); err != nil {
		return nil, err
	}

	city := stringField(geo.Address, "city", "")
	if city == "" {
		city = stringField(geo.Address, "town", "")
	}
	if city == "" {
		city = stringField(geo.Address, "village", "")
	}
	state := stringField(geo.Address, "state", "")
	country := stringField(geo.Address, "country", "")

	var parts []string
	for _, p := range []string{
		stringField(geo.Address, "road", ""),
		stringField(geo.Address, "suburb", ""),
		city, state, country,
	} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	address := strings.Join(parts, ", ")
	if address == "" {
		address = geo.DisplayName
	}

	return map[string]any{
		"address": address,
		"city":    city,
		"state":   state,
		"country": country,
	}, nil
}
