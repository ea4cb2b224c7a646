package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidImage = errors.New("image must be a url string or an object with a url")

// Image is a stored picture reference. Legacy records only carry a URL.
type Image struct {
	URL        string     `json:"url"`
	Key        string     `json:"key,omitempty"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}

// HasKey reports whether the image can be re-signed through the blob store.
func (i Image) HasKey() bool {
	return i.Key != ""
}

type imageJSON struct {
	URL        string     `json:"url"`
	Key        string     `json:"key,omitempty"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}

// UnmarshalJSON accepts either "https://..." or {"url": ..., "key": ...}.
func (i *Image) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var url string
		if err := json.Unmarshal(data, &url); err != nil {
			return err
		}
		if url == "" {
			return ErrInvalidImage
		}
		*i = Image{URL: url}
		return nil
	}

	var obj imageJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return ErrInvalidImage
	}
	if obj.URL == "" && obj.Key == "" {
		return ErrInvalidImage
	}
	*i = Image(obj)
	return nil
}
