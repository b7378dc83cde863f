package imagery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"agbprep/internal/services"
)

// ExtractFormat is the raster format requested from the service.
const ExtractFormat = "GEO_TIFF"

// ExtractRequest asks for one band of a scene clipped to a region.
type ExtractRequest struct {
	SceneID string
	Band    string
	// Scale is the output pixel size in meters.
	Scale  float64
	Region orb.Polygon
}

type extractPayload struct {
	Band   string            `json:"band"`
	Scale  float64           `json:"scale"`
	Region *geojson.Geometry `json:"region"`
	Format string            `json:"format"`
}

type extractResponse struct {
	URL string `json:"url"`
}

// Extract requests a clipped raster and returns its download URL.
func (c *Client) Extract(ctx context.Context, req ExtractRequest) (string, error) {
	if strings.TrimSpace(req.SceneID) == "" || strings.TrimSpace(req.Band) == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "extract", "scene id and band are required", nil)
	}
	payload := extractPayload{
		Band:   req.Band,
		Scale:  req.Scale,
		Region: geojson.NewGeometry(req.Region),
		Format: ExtractFormat,
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()
	body, err := c.doWithRetry(ctx, "extract", func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, payload, "scenes", url.PathEscape(req.SceneID), "extract")
	})
	if err != nil {
		return "", err
	}
	var parsed extractResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(services.ErrExternalService, stageName, "extract", "decode response", err)
	}
	if strings.TrimSpace(parsed.URL) == "" {
		return "", services.Wrap(services.ErrExternalService, stageName, "extract", "response has no download url", nil)
	}
	return c.resolveURL(parsed.URL)
}

// resolveURL accepts absolute URLs and paths relative to the base URL.
func (c *Client) resolveURL(raw string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", services.Wrap(services.ErrExternalService, stageName, "extract", "invalid download url", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(c.cfg.BaseURL + "/")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "extract", "invalid base url", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Raster is an open download stream. Closing it releases the connection and
// the download deadline.
type Raster struct {
	io.ReadCloser
	// Size is the advertised length, or -1 when unknown.
	Size   int64
	cancel context.CancelFunc
}

// NewRaster wraps a stream that did not come from Download.
func NewRaster(body io.ReadCloser, size int64) *Raster {
	return &Raster{ReadCloser: body, Size: size}
}

// Close closes the body and cancels the download context.
func (r *Raster) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

// Download opens the raster at downloadURL. The download timeout covers the
// whole transfer, including reads from the returned stream.
func (c *Client) Download(ctx context.Context, downloadURL string) (*Raster, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.DownloadTimeout)
	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
		if err != nil {
			cancel()
			return nil, services.Wrap(services.ErrExternalService, stageName, "download", "invalid url", err)
		}
		if c.cfg.APIKey != "" && sameHost(downloadURL, c.cfg.BaseURL) {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
		resp, err := c.httpClient.Do(req)
		if err == nil && resp.StatusCode < http.StatusMultipleChoices {
			return &Raster{ReadCloser: resp.Body, Size: resp.ContentLength, cancel: cancel}, nil
		}
		if err == nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			err = &statusError{Op: "download", StatusCode: resp.StatusCode, Body: string(body)}
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	cancel()
	return nil, classify("download", lastErr)
}

// Fetch extracts one band and opens its download stream.
func (c *Client) Fetch(ctx context.Context, req ExtractRequest) (*Raster, error) {
	downloadURL, err := c.Extract(ctx, req)
	if err != nil {
		return nil, err
	}
	raster, err := c.Download(ctx, downloadURL)
	if err != nil {
		return nil, fmt.Errorf("band %s: %w", req.Band, err)
	}
	return raster, nil
}

func sameHost(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host)
}
