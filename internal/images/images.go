// Package images validates and optimizes uploaded post images.
package images

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path"
	"regexp"
	"strings"

	_ "image/gif" // register decoders for image.Decode

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// Allowed upload types mapped to their canonical extension.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func Allowed(contentType string) bool {
	_, ok := allowedTypes[contentType]
	return ok
}

func AllowedTypes() []string {
	types := make([]string, 0, len(allowedTypes))
	for t := range allowedTypes {
		types = append(types, t)
	}
	return types
}

// Optimize re-encodes an image, downscaling the longest side to maxDimension.
// GIFs pass through untouched so animation survives; WebP passes through
// because Go has no encoder for it. Any decode or encode failure falls back
// to the original bytes - optimization is best effort, never a gate.
func Optimize(content []byte, contentType string, maxDimension, jpegQuality int) ([]byte, string) {
	ext, ok := allowedTypes[contentType]
	if !ok {
		ext = ".jpg"
	}

	if contentType == "image/gif" || contentType == "image/webp" {
		return content, ext
	}

	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return content, ext
	}

	img = downscale(img, maxDimension)

	var buf bytes.Buffer
	switch contentType {
	case "image/png":
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return content, ext
	}
	return buf.Bytes(), ext
}

func downscale(img image.Image, maxDimension int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxDimension <= 0 || (w <= maxDimension && h <= maxDimension) {
		return img
	}

	if w >= h {
		h = h * maxDimension / w
		w = maxDimension
	} else {
		w = w * maxDimension / h
		h = maxDimension
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

var filenameInvalid = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// UniqueFilename sanitizes the uploaded name and appends a short unique
// suffix so repeated uploads of the same file never collide.
func UniqueFilename(original, ext string) string {
	base := original
	if base == "" {
		base = "image"
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	base = filenameInvalid.ReplaceAllString(base, "-")

	return fmt.Sprintf("%s-%s%s", base, uuid.New().String()[:8], ext)
}

var extensionContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var proxyPathValid = regexp.MustCompile(`^[a-zA-Z0-9_\-./]+$`)

// ValidateProxyPath sanitizes a proxied image path: no traversal, no absolute
// paths, known image extension only.
func ValidateProxyPath(filename string) (string, error) {
	normalized := strings.ReplaceAll(filename, "\\", "/")

	if strings.Contains(normalized, "..") || strings.HasPrefix(normalized, "/") {
		return "", fmt.Errorf("invalid filename")
	}
	if !proxyPathValid.MatchString(normalized) {
		return "", fmt.Errorf("invalid filename characters")
	}
	if _, ok := extensionContentTypes[strings.ToLower(path.Ext(normalized))]; !ok {
		return "", fmt.Errorf("invalid image type")
	}
	return normalized, nil
}

// ContentTypeForPath maps a validated image path to its MIME type.
func ContentTypeForPath(p string) string {
	if ct, ok := extensionContentTypes[strings.ToLower(path.Ext(p))]; ok {
		return ct
	}
	return "application/octet-stream"
}
