package upload

import (
	"fmt"
	"mime/multipart"
	"strings"
)

// MB is the unit used in limit messages.
const MB = 1024 * 1024

// multipartOverhead is headroom for boundaries and text fields on top of the
// aggregate file ceiling when bounding request bodies.
const multipartOverhead = 1 * MB

// Kind is the media category of a file.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// File describes one uploaded file as declared by the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
}

// Kind classifies f by its declared content type.
func (f File) Kind() (Kind, bool) {
	return Classify(f.ContentType)
}

// Classify maps a MIME type to a Kind.
func Classify(contentType string) (Kind, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage, true
	case strings.HasPrefix(ct, "video/"):
		return KindVideo, true
	default:
		return "", false
	}
}

// Policy is a set of batch limits. A zero MaxVideos means videos are not
// accepted at all.
type Policy struct {
	MaxImages     int
	MaxVideos     int
	MaxImageBytes int64
	MaxVideoBytes int64
	MaxTotalBytes int64
}

// PostMediaPolicy is the limit set for post attachments.
func PostMediaPolicy() Policy {
	return Policy{
		MaxImages:     5,
		MaxVideos:     2,
		MaxImageBytes: 5 * MB,
		MaxVideoBytes: 20 * MB,
		MaxTotalBytes: 40 * MB,
	}
}

// ProfilePhotoPolicy is the limit set for a single profile photo.
func ProfilePhotoPolicy() Policy {
	return Policy{
		MaxImages:     1,
		MaxImageBytes: 5 * MB,
		MaxTotalBytes: 5 * MB,
	}
}

// MaxFiles is the largest batch the policy can accept.
func (p Policy) MaxFiles() int {
	return p.MaxImages + p.MaxVideos
}

// RequestLimit is the request-body ceiling for http.MaxBytesReader. It only
// bounds parsing; limits are enforced by Validate.
func RequestLimit(p Policy) int64 {
	return p.MaxTotalBytes + multipartOverhead
}

func (p Policy) unsupportedMessage() string {
	if p.MaxVideos == 0 {
		return "Only images are allowed"
	}
	return "Only images and videos are allowed"
}

// FromMultipart converts parsed multipart headers to File descriptors.
func FromMultipart(headers []*multipart.FileHeader) []File {
	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		if fh == nil {
			continue
		}
		files = append(files, File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
		})
	}
	return files
}

func formatMB(size int64) string {
	return fmt.Sprintf("%.2f", float64(size)/MB)
}

// formatLimit prints whole megabyte limits without decimals.
func formatLimit(size int64) string {
	if size%MB == 0 {
		return fmt.Sprintf("%d", size/MB)
	}
	return formatMB(size)
}
