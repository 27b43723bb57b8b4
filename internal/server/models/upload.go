package models

import "time"

// UploadedFile describes a hazard-report attachment stored in the media
// bucket. Key is the storage object key; URL is the API path that redirects
// to a time-limited retrieval link.
type UploadedFile struct {
	Key          string    `json:"key"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	URL          string    `json:"url,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
