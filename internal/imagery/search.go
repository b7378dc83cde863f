package imagery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"agbprep/internal/services"
)

// SearchRequest filters catalog scenes.
type SearchRequest struct {
	Region        orb.Polygon
	Start         time.Time
	End           time.Time
	MaxCloudCover float64
}

// Scene is one candidate image returned by a search.
type Scene struct {
	ID         string
	Datetime   time.Time
	CloudCover float64
}

type sortField struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

type searchPayload struct {
	Collection    string            `json:"collection"`
	Intersects    *geojson.Geometry `json:"intersects"`
	Datetime      string            `json:"datetime"`
	MaxCloudCover float64           `json:"max_cloud_cover"`
	SortBy        []sortField       `json:"sortby"`
	Limit         int               `json:"limit"`
}

// Search returns scenes intersecting the region within [Start, End) whose
// cloud cover does not exceed MaxCloudCover, best first. An empty result is
// reported as ErrNoImagery.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Scene, error) {
	if len(req.Region) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "search", "empty region", nil)
	}
	payload := searchPayload{
		Collection:    c.cfg.Collection,
		Intersects:    geojson.NewGeometry(req.Region),
		Datetime:      req.Start.UTC().Format(time.RFC3339) + "/" + req.End.UTC().Format(time.RFC3339),
		MaxCloudCover: req.MaxCloudCover,
		SortBy:        []sortField{{Field: "cloud_cover", Direction: "asc"}},
		Limit:         c.cfg.CandidateLimit,
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()
	body, err := c.doWithRetry(ctx, "search", func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, payload, "search")
	})
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, stageName, "search", "decode response", err)
	}
	scenes := make([]Scene, 0, len(fc.Features))
	for _, feature := range fc.Features {
		scene, ok := sceneFromFeature(feature)
		if !ok {
			continue
		}
		if scene.CloudCover > req.MaxCloudCover {
			continue
		}
		if !req.Start.IsZero() && !scene.Datetime.IsZero() && (scene.Datetime.Before(req.Start) || !scene.Datetime.Before(req.End)) {
			continue
		}
		scenes = append(scenes, scene)
	}
	RankScenes(scenes)
	if len(scenes) == 0 {
		return nil, ErrNoImagery
	}
	return scenes, nil
}

// RankScenes orders scenes by ascending cloud cover, keeping service order
// among ties.
func RankScenes(scenes []Scene) {
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].CloudCover < scenes[j].CloudCover
	})
}

func sceneFromFeature(feature *geojson.Feature) (Scene, bool) {
	id := featureID(feature)
	if id == "" {
		return Scene{}, false
	}
	cloud, ok := numberProperty(feature.Properties, "cloud_cover", "eo:cloud_cover", "CLOUDY_PIXEL_PERCENTAGE")
	if !ok {
		return Scene{}, false
	}
	scene := Scene{ID: id, CloudCover: cloud}
	if raw, ok := feature.Properties["datetime"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			scene.Datetime = ts.UTC()
		}
	}
	return scene, true
}

func featureID(feature *geojson.Feature) string {
	switch v := feature.ID.(type) {
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	if id, ok := feature.Properties["id"].(string); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

func numberProperty(props geojson.Properties, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := props[key].(type) {
		case float64:
			return v, true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
