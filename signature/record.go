package signature

import (
	"encoding/json"
)

// Position is a point in PDF space: origin bottom-left, y up, PDF points.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Record is the backend-facing form of one signature.
type Record struct {
	Type Kind   `json:"type"`
	Data string `json:"data"`

	Position

	PageNumber int `json:"pageNumber"`

	Font     string  `json:"font,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
	Color    string  `json:"color,omitempty"`
}

// Encode returns the JSON array sent as the signatures form field.
func Encode(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}

	return json.Marshal(records)
}

func Decode(data []byte) ([]Record, error) {
	var records []Record

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	return records, nil
}
