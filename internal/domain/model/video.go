package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// VideoVariant is one downloadable rendition returned by the upstream resolver.
type VideoVariant struct {
	Name      string `json:"name"`
	Video     string `json:"video"`
	Thumbnail string `json:"thumbnail"`
}

// ResolvedVideo is the parsed upstream resolver response.
// Raw keeps the payload exactly as received so it can be persisted for audit.
type ResolvedVideo struct {
	Variants []VideoVariant
	Raw      json.RawMessage
}

// resolverPayload is the subset of the upstream response we depend on.
type resolverPayload struct {
	Video []VideoVariant `json:"video"`
}

// ParseResolvedVideo validates an upstream response body.
// A body without at least one variant carrying a name and a download URL
// is reported as ErrMalformedUpstreamResponse.
func ParseResolvedVideo(body []byte) (*ResolvedVideo, error) {
	var p resolverPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrMalformedUpstreamResponse, err)
	}

	if len(p.Video) == 0 {
		return nil, fmt.Errorf("%w: no video variants", ErrMalformedUpstreamResponse)
	}

	primary := p.Video[0]
	if strings.TrimSpace(primary.Name) == "" {
		return nil, fmt.Errorf("%w: variant has no name", ErrMalformedUpstreamResponse)
	}
	if strings.TrimSpace(primary.Video) == "" {
		return nil, fmt.Errorf("%w: variant has no download url", ErrMalformedUpstreamResponse)
	}

	raw := make(json.RawMessage, len(body))
	copy(raw, body)

	return &ResolvedVideo{
		Variants: p.Video,
		Raw:      raw,
	}, nil
}

// Primary returns the variant used for naming and downloading.
func (v *ResolvedVideo) Primary() VideoVariant {
	if v == nil || len(v.Variants) == 0 {
		return VideoVariant{}
	}
	return v.Variants[0]
}

// Filename is the dedup key derived from the primary variant.
func (v *ResolvedVideo) Filename() string {
	return v.Primary().Name
}

// StoredVideo is the persisted record of a first-time resolution.
type StoredVideo struct {
	ID          string
	Filename    string
	SourceURL   string
	DownloadURL string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// NewStoredVideo builds the record persisted for a resolution of sourceURL.
func NewStoredVideo(sourceURL string, resolved *ResolvedVideo) *StoredVideo {
	primary := resolved.Primary()
	return &StoredVideo{
		Filename:    primary.Name,
		SourceURL:   sourceURL,
		DownloadURL: primary.Video,
		Payload:     resolved.Raw,
		CreatedAt:   time.Now().UTC(),
	}
}

// VideoSummary is the listing shape used by the administrative report.
type VideoSummary struct {
	ID        string
	Filename  string
	SourceURL string
	CreatedAt time.Time
}

// StoreStats aggregates reporting numbers over all stored records.
type StoreStats struct {
	TotalFiles     int64
	TotalSizeBytes int64
	Videos         []VideoSummary
}

// TotalSizeMB converts TotalSizeBytes to megabytes rounded to two decimals.
func (s StoreStats) TotalSizeMB() float64 {
	mb := float64(s.TotalSizeBytes) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}
