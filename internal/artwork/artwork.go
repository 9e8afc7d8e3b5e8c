// Package artwork loads album art, shrinks it into data URIs and extracts an
// accent color from it.
package artwork

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

// maxDownload caps remote artwork downloads.
const maxDownload = 8 << 20

const dataURIPrefix = "data:"

// Decode decodes base64-encoded or raw image data.
// playerctl and MediaRemote hand out base64, AppleScript hands out raw bytes.
func Decode(imgData []byte) (image.Image, error) {
	var imageData []byte
	if decoded, err := base64.StdEncoding.DecodeString(string(imgData)); err == nil {
		imageData = decoded
	} else {
		imageData = imgData
	}

	if len(imageData) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return img, nil
}

// Load fetches the raw bytes behind an artwork reference: a file:// URL, an
// http(s) URL or a base64 data URI.
func Load(ctx context.Context, client *http.Client, ref string) ([]byte, error) {
	switch {
	case ref == "":
		return nil, fmt.Errorf("no artwork URL")

	case strings.HasPrefix(ref, dataURIPrefix):
		return ParseDataURI(ref)

	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("parse artwork URL: %w", err)
		}
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read artwork file: %w", err)
		}
		return data, nil

	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download artwork: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("artwork download failed with status: %d", resp.StatusCode)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
		if err != nil {
			return nil, fmt.Errorf("failed to read artwork data: %w", err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("unsupported artwork URL scheme: %s", ref)
}

// Thumbnail resizes img to width pixels (aspect ratio kept) and encodes it as PNG.
func Thumbnail(img image.Image, width int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	if width > 0 && img.Bounds().Dx() > width {
		img = resize.Resize(uint(width), 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI wraps PNG bytes in a data URI.
func DataURI(pngData []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)
}

// ParseDataURI returns the payload of a base64 data URI.
func ParseDataURI(uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, dataURIPrefix) {
		return nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, dataURIPrefix), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URI: %w", err)
	}
	return data, nil
}

// EmbedFile turns a file:// artwork reference into a thumbnail data URI.
func EmbedFile(ref string, width int) (string, error) {
	if !strings.HasPrefix(ref, "file://") {
		return "", fmt.Errorf("not a file URL: %s", ref)
	}
	raw, err := Load(context.Background(), nil, ref)
	if err != nil {
		return "", err
	}
	img, err := Decode(raw)
	if err != nil {
		return "", err
	}
	thumb, err := Thumbnail(img, width)
	if err != nil {
		return "", err
	}
	return DataURI(thumb), nil
}

// DominantColor picks a vibrant, reasonably light color from img for use on
// dark backgrounds, returned as "#rrggbb".
func DominantColor(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}

	bounds := img.Bounds()

	// Sample every 5th pixel.
	colorMap := make(map[uint32]int)
	const sampleRate = 5

	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleRate {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleRate {
			r, g, b, a := img.At(x, y).RGBA()
			if a < 32768 {
				continue
			}
			rgb := (uint32(uint8(r>>8)) << 16) | (uint32(uint8(g>>8)) << 8) | uint32(uint8(b>>8))
			colorMap[rgb]++
		}
	}

	type colorScore struct {
		rgb   uint32
		score float64
	}

	var candidates []colorScore
	for rgb, count := range colorMap {
		lightness, saturation := hsl(rgb)

		// Too dark, near-white, or washed out.
		if lightness < 0.3 || lightness > 0.85 || saturation < 0.25 {
			continue
		}

		lightnessScore := lightness
		if lightness > 0.7 {
			lightnessScore = 0.7 - (lightness - 0.7)
		}

		score := (saturation * 2.5) + (lightnessScore * 1.5) + (float64(count) / 1000.0)
		candidates = append(candidates, colorScore{rgb: rgb, score: score})
	}

	if len(candidates) == 0 {
		colors, err := prominentcolor.Kmeans(img)
		if err != nil || len(colors) == 0 {
			return "", fmt.Errorf("no suitable colors found")
		}
		c := colors[0]
		return fmt.Sprintf("#%02x%02x%02x", c.Color.R, c.Color.G, c.Color.B), nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].rgb < candidates[j].rgb
	})

	best := candidates[0].rgb
	return fmt.Sprintf("#%02x%02x%02x", uint8(best>>16), uint8(best>>8), uint8(best)), nil
}

func hsl(rgb uint32) (lightness, saturation float64) {
	rf := float64(uint8(rgb>>16)) / 255.0
	gf := float64(uint8(rgb>>8)) / 255.0
	bf := float64(uint8(rgb)) / 255.0

	hi := max(rf, gf, bf)
	lo := min(rf, gf, bf)

	lightness = (hi + lo) / 2.0
	if hi != lo {
		if lightness > 0.5 {
			saturation = (hi - lo) / (2.0 - hi - lo)
		} else {
			saturation = (hi - lo) / (hi + lo)
		}
	}
	return lightness, saturation
}
