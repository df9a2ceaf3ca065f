package queue

import (
	"encoding/json"
	"strings"
)

// VideoMetadata captures source details reported by the fetch stage.
type VideoMetadata struct {
	VideoID         string  `json:"video_id,omitempty"`
	Channel         string  `json:"channel,omitempty"`
	Uploader        string  `json:"uploader,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	UploadDate      string  `json:"upload_date,omitempty"`
	Thumbnail       string  `json:"thumbnail,omitempty"`
	Description     string  `json:"description,omitempty"`
	ViewCount       int64   `json:"view_count,omitempty"`
	LikeCount       int64   `json:"like_count,omitempty"`
}

// Metadata decodes the stored video metadata. Returns the zero value when the
// job has no metadata recorded yet.
func (j *Job) Metadata() VideoMetadata {
	if strings.TrimSpace(j.MetadataJSON) == "" {
		return VideoMetadata{}
	}
	var meta VideoMetadata
	if err := json.Unmarshal([]byte(j.MetadataJSON), &meta); err != nil {
		return VideoMetadata{}
	}
	return meta
}

// SetMetadata encodes and stores the video metadata.
func (j *Job) SetMetadata(meta VideoMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	j.MetadataJSON = string(data)
	return nil
}
