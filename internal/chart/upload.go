package chart

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Uploader publishes a rendered image and returns a resolvable URL for it.
type Uploader interface {
	Upload(ctx context.Context, png []byte, title string) (string, error)
}

// ImgurUploader posts images to the imgur anonymous-upload API.
type ImgurUploader struct {
	clientID string
	baseURL  string
	client   *http.Client
}

// NewImgurUploader creates an uploader authenticated by client ID. An empty
// baseURL targets the public API; tests point it at a local server.
func NewImgurUploader(clientID, baseURL string, client *http.Client) *ImgurUploader {
	if baseURL == "" {
		baseURL = "https://api.imgur.com"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ImgurUploader{clientID: clientID, baseURL: baseURL, client: client}
}

type imgurResponse struct {
	Data struct {
		Link  string `json:"link"`
		Error string `json:"error"`
	} `json:"data"`
	Success bool `json:"success"`
}

// Upload posts the image and returns its public link.
func (u *ImgurUploader) Upload(ctx context.Context, png []byte, title string) (string, error) {
	form := url.Values{
		"image": {base64.StdEncoding.EncodeToString(png)},
		"type":  {"base64"},
		"title": {title},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/3/image", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Client-ID "+u.clientID)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image upload failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed imgurResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("bad upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !parsed.Success {
		if parsed.Data.Error != "" {
			return "", fmt.Errorf("image upload rejected: %s", parsed.Data.Error)
		}
		return "", fmt.Errorf("image upload rejected: %s", resp.Status)
	}
	if parsed.Data.Link == "" {
		return "", fmt.Errorf("upload response missing link")
	}
	return parsed.Data.Link, nil
}
