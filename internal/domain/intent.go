package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Edit change types.
const (
	ChangeHairLength    = "hair_length"
	ChangeHairColor     = "hair_color"
	ChangeHairStyle     = "hair_style"
	ChangeBeardStyle    = "beard_style"
	ChangeClothingColor = "clothing_color"
	ChangeClothingItem  = "clothing_item"
	ChangeClothingFit   = "clothing_fit"
)

type EditChange struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// EditIntent is the structured instruction sent to an image editor.
type EditIntent struct {
	Locale           string       `json:"locale"`
	Change           []EditChange `json:"change"`
	Instruction      string       `json:"instruction"`
	PreserveIdentity bool         `json:"preserveIdentity"`
	OutputSize       int          `json:"outputSize"`
	Watermark        bool         `json:"watermark"`
}

func (i EditIntent) Has(changeType string) bool {
	for _, c := range i.Change {
		if c.Type == changeType {
			return true
		}
	}
	return false
}

// RegistryItem is one generated image tracked for later cleanup.
type RegistryItem struct {
	PublicID  string    `json:"publicId"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	SessionID string    `json:"sessionId,omitempty"`
}

// UnmarshalJSON accepts createdAt as an RFC 3339 string or as epoch
// milliseconds, which older registry files use.
func (it *RegistryItem) UnmarshalJSON(data []byte) error {
	type plain RegistryItem
	var raw struct {
		plain
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*it = RegistryItem(raw.plain)
	ts := bytes.TrimSpace(raw.CreatedAt)
	switch {
	case len(ts) == 0 || bytes.Equal(ts, []byte("null")):
		it.CreatedAt = time.Time{}
	case ts[0] == '"':
		var t time.Time
		if err := json.Unmarshal(ts, &t); err != nil {
			return fmt.Errorf("registry item %s: createdAt: %w", it.PublicID, err)
		}
		it.CreatedAt = t
	default:
		var ms json.Number
		if err := json.Unmarshal(ts, &ms); err != nil {
			return fmt.Errorf("registry item %s: createdAt: %w", it.PublicID, err)
		}
		n, err := ms.Float64()
		if err != nil {
			return fmt.Errorf("registry item %s: createdAt: %w", it.PublicID, err)
		}
		it.CreatedAt = time.UnixMilli(int64(n)).UTC()
	}
	return nil
}

// StoredImage is the result of uploading bytes to storage.
type StoredImage struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}
