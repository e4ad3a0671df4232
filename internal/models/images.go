package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id,omitempty"`
}

// ImageList is the canonical form of a product's images. Stored data may
// be a bare URL string, a single object, or an array mixing both; all of
// them decode into the same slice.
type ImageList []Image

type rawImage struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	// older documents used camelCase and secure_url
	PublicIDCamel string `json:"publicId"`
	SecureURL     string `json:"secure_url"`
}

func (r rawImage) image() Image {
	img := Image{URL: r.URL, PublicID: r.PublicID}
	if img.URL == "" {
		img.URL = r.SecureURL
	}
	if img.PublicID == "" {
		img.PublicID = r.PublicIDCamel
	}
	return img
}

func (l *ImageList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	switch data[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return fmt.Errorf("decode images: %w", err)
		}
		out := make(ImageList, 0, len(elems))
		for _, elem := range elems {
			img, ok, err := decodeImage(elem)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, img)
			}
		}
		*l = out
		return nil
	default:
		img, ok, err := decodeImage(data)
		if err != nil {
			return err
		}
		if !ok {
			*l = nil
			return nil
		}
		*l = ImageList{img}
		return nil
	}
}

func decodeImage(data json.RawMessage) (Image, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Image{}, false, nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Image{}, false, fmt.Errorf("decode image url: %w", err)
		}
		s = strings.TrimSpace(s)
		return Image{URL: s}, s != "", nil
	case '{':
		var raw rawImage
		if err := json.Unmarshal(data, &raw); err != nil {
			return Image{}, false, fmt.Errorf("decode image object: %w", err)
		}
		img := raw.image()
		img.URL = strings.TrimSpace(img.URL)
		return img, img.URL != "", nil
	}
	return Image{}, false, fmt.Errorf("decode image: unsupported shape %q", string(data))
}

// Scan reads a json/jsonb column.
func (l *ImageList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return l.UnmarshalJSON(v)
	case string:
		return l.UnmarshalJSON([]byte(v))
	}
	return fmt.Errorf("scan images: unsupported type %T", src)
}

func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Image(l))
}

// First returns the first image URL or "".
func (l ImageList) First() string {
	if len(l) == 0 {
		return ""
	}
	return l[0].URL
}
