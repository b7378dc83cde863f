package imagery

import (
	"time"

	"agbprep/internal/config"
)

// NewConfiguredClient builds a client from the imagery configuration section.
func NewConfiguredClient(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		return NewClient(Config{}, opts...)
	}
	return NewClient(Config{
		BaseURL:         cfg.Imagery.BaseURL,
		APIKey:          cfg.Imagery.APIKey,
		Collection:      cfg.Imagery.Collection,
		QueryTimeout:    time.Duration(cfg.Imagery.QueryTimeoutSeconds) * time.Second,
		DownloadTimeout: time.Duration(cfg.Imagery.DownloadTimeoutSeconds) * time.Second,
		CandidateLimit:  cfg.Imagery.CandidateLimit,
	}, opts...)
}
