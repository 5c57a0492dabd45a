package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// SearchResult is a single comic returned by the backend's indexed search
type SearchResult struct {
	ID  *int   `json:"id,omitempty"`
	URL string `json:"url"`
}

// HasID reports whether the backend supplied an identifier
func (r SearchResult) HasID() bool { return r.ID != nil }

// IDString returns the identifier as text, or "" when absent
func (r SearchResult) IDString() string {
	if r.ID == nil {
		return ""
	}
	return strconv.Itoa(*r.ID)
}

// SearchReply is the JSON body of GET /api/isearch
type SearchReply struct {
	Comics []SearchResult `json:"comics"`
	Total  int            `json:"total"`
}

// MediaAsset is a downloaded image whose content type starts with "image/"
type MediaAsset struct {
	Data        []byte
	ContentType string
	SourceURL   string
}

// Digest returns the hex sha256 of the image bytes
func (m *MediaAsset) Digest() string {
	sum := sha256.Sum256(m.Data)
	return hex.EncodeToString(sum[:])
}
