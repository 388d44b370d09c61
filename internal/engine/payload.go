package engine

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
)

// Payload is the request body the detection function expects.
type Payload struct {
	ImageData struct {
		Image string `json:"image"`
	} `json:"image_data"`
}

// EncodePayload wraps an opaque image blob in the JSON envelope.
func EncodePayload(blob []byte) ([]byte, error) {
	var p Payload
	p.ImageData.Image = base64.StdEncoding.EncodeToString(blob)
	return json.Marshal(p)
}

// DecodePayload extracts the image blob from a request body.
func DecodePayload(body []byte) ([]byte, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	if p.ImageData.Image == "" {
		return nil, fmt.Errorf("invalid payload: image_data.image is empty")
	}
	return base64.StdEncoding.DecodeString(p.ImageData.Image)
}

// PrepareImage reads an image file and encodes it as a request body.
func PrepareImage(path string) ([]byte, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not load image at %s: %w", path, err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("image %s is empty", path)
	}
	return EncodePayload(blob)
}
