package upload

import (
	"fmt"
	"strings"
)

// Violation codes.
const (
	CodeUnsupportedType = "unsupported_type"
	CodeImageCount      = "image_count"
	CodeVideoCount      = "video_count"
	CodeImageSize       = "image_size"
	CodeVideoSize       = "video_size"
	CodeTotalSize       = "total_size"
)

// Violation is one broken limit.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
}

// LimitError is returned when a batch breaks at least one limit.
type LimitError struct {
	Violations []Violation
	// Breakdown is set for aggregate-size violations, keyed "photos" and
	// "videos".
	Breakdown map[string]string
}

func (e *LimitError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, " ")
}

// Message is the headline message: the first violation.
func (e *LimitError) Message() string {
	if len(e.Violations) == 0 {
		return ""
	}
	return e.Violations[0].Message
}

// Has reports whether a violation with code was recorded.
func (e *LimitError) Has(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Summary describes an accepted batch.
type Summary struct {
	Images     int
	Videos     int
	ImageBytes int64
	VideoBytes int64
	TotalBytes int64
}

// Validate checks files against p. It returns a *LimitError listing every
// violation, or the batch summary when all checks pass.
func (p Policy) Validate(files []File) (Summary, error) {
	var (
		s          Summary
		violations []Violation
		images     []File
		videos     []File
	)

	for _, f := range files {
		s.TotalBytes += f.Size
		kind, ok := f.Kind()
		if ok && kind == KindVideo && p.MaxVideos == 0 {
			ok = false
		}
		if !ok {
			violations = append(violations, Violation{
				Code:    CodeUnsupportedType,
				Message: p.unsupportedMessage(),
				File:    f.Name,
			})
			continue
		}
		if kind == KindImage {
			images = append(images, f)
			s.ImageBytes += f.Size
		} else {
			videos = append(videos, f)
			s.VideoBytes += f.Size
		}
	}
	s.Images = len(images)
	s.Videos = len(videos)

	if s.Images > p.MaxImages {
		violations = append(violations, Violation{
			Code:    CodeImageCount,
			Message: fmt.Sprintf("Maximum %d photos allowed. You uploaded %d.", p.MaxImages, s.Images),
		})
	}
	if p.MaxVideos > 0 && s.Videos > p.MaxVideos {
		violations = append(violations, Violation{
			Code:    CodeVideoCount,
			Message: fmt.Sprintf("Maximum %d videos allowed. You uploaded %d.", p.MaxVideos, s.Videos),
		})
	}

	for _, f := range images {
		if f.Size > p.MaxImageBytes {
			violations = append(violations, Violation{
				Code: CodeImageSize,
				Message: fmt.Sprintf("Photo %q is %sMB. Maximum photo size is %sMB.",
					f.Name, formatMB(f.Size), formatLimit(p.MaxImageBytes)),
				File: f.Name,
			})
		}
	}
	for _, f := range videos {
		if f.Size > p.MaxVideoBytes {
			violations = append(violations, Violation{
				Code: CodeVideoSize,
				Message: fmt.Sprintf("Video %q is %sMB. Maximum video size is %sMB.",
					f.Name, formatMB(f.Size), formatLimit(p.MaxVideoBytes)),
				File: f.Name,
			})
		}
	}

	var breakdown map[string]string
	if s.TotalBytes > p.MaxTotalBytes {
		violations = append(violations, Violation{
			Code: CodeTotalSize,
			Message: fmt.Sprintf("Total upload size is %sMB. Maximum total size is %sMB.",
				formatMB(s.TotalBytes), formatLimit(p.MaxTotalBytes)),
		})
		breakdown = map[string]string{
			"photos": fmt.Sprintf("%d photos (%sMB)", s.Images, formatMB(s.ImageBytes)),
			"videos": fmt.Sprintf("%d videos (%sMB)", s.Videos, formatMB(s.VideoBytes)),
		}
	}

	if len(violations) > 0 {
		return s, &LimitError{Violations: violations, Breakdown: breakdown}
	}
	return s, nil
}
