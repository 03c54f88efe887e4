package upload

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func images(n int, size int64) []File {
	files := make([]File, n)
	for i := range files {
		files[i] = File{Name: fmt.Sprintf("p%d.jpg", i), ContentType: "image/jpeg", Size: size}
	}
	return files
}

func videos(n int, size int64) []File {
	files := make([]File, n)
	for i := range files {
		files[i] = File{Name: fmt.Sprintf("v%d.mp4", i), ContentType: "video/mp4", Size: size}
	}
	return files
}

func limitError(t *testing.T, err error) *LimitError {
	t.Helper()
	var le *LimitError
	require.True(t, errors.As(err, &le), "expected *LimitError, got %v", err)
	return le
}

func TestTooManyPhotos(t *testing.T) {
	_, err := PostMediaPolicy().Validate(images(6, MB))
	le := limitError(t, err)

	assert.Equal(t, "Maximum 5 photos allowed. You uploaded 6.", le.Message())
	assert.True(t, le.Has(CodeImageCount))
	assert.Nil(t, le.Breakdown)
}

func TestTooManyVideos(t *testing.T) {
	_, err := PostMediaPolicy().Validate(videos(3, MB))
	le := limitError(t, err)
	assert.Equal(t, "Maximum 2 videos allowed. You uploaded 3.", le.Message())
}

func TestMixedBatchAccepted(t *testing.T) {
	batch := append(images(3, 4*MB), videos(1, 18*MB)...)
	s, err := PostMediaPolicy().Validate(batch)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Images)
	assert.Equal(t, 1, s.Videos)
	assert.Equal(t, int64(30*MB), s.TotalBytes)
}

func TestAggregateLimitWithBreakdown(t *testing.T) {
	batch := append(images(5, 5*MB), videos(2, 20*MB)...)
	_, err := PostMediaPolicy().Validate(batch)
	le := limitError(t, err)

	require.Len(t, le.Violations, 1)
	assert.Equal(t, CodeTotalSize, le.Violations[0].Code)
	assert.Equal(t, "Total upload size is 65.00MB. Maximum total size is 40MB.", le.Message())
	assert.Equal(t, map[string]string{
		"photos": "5 photos (25.00MB)",
		"videos": "2 videos (40.00MB)",
	}, le.Breakdown)
}

func TestPerItemSizes(t *testing.T) {
	batch := []File{
		{Name: "big.png", ContentType: "image/png", Size: 6 * MB},
		{Name: "long.mov", ContentType: "video/quicktime", Size: 21 * MB},
	}
	_, err := PostMediaPolicy().Validate(batch)
	le := limitError(t, err)

	require.Len(t, le.Violations, 2)
	assert.Equal(t, `Photo "big.png" is 6.00MB. Maximum photo size is 5MB.`, le.Violations[0].Message)
	assert.Equal(t, `Video "long.mov" is 21.00MB. Maximum video size is 20MB.`, le.Violations[1].Message)
	assert.Equal(t, "big.png", le.Violations[0].File)
}

func TestAllViolationsCollected(t *testing.T) {
	batch := append(images(6, 7*MB), File{Name: "doc.pdf", ContentType: "application/pdf", Size: 1})
	_, err := PostMediaPolicy().Validate(batch)
	le := limitError(t, err)

	for _, code := range []string{CodeUnsupportedType, CodeImageCount, CodeImageSize, CodeTotalSize} {
		assert.True(t, le.Has(code), "missing %s", code)
	}
	assert.Equal(t, "Only images and videos are allowed", le.Message())
}

func TestEmptyBatchAccepted(t *testing.T) {
	_, err := PostMediaPolicy().Validate(nil)
	assert.NoError(t, err)
}

func TestProfilePhotoPolicy(t *testing.T) {
	p := ProfilePhotoPolicy()

	_, err := p.Validate(images(1, 5*MB))
	assert.NoError(t, err)

	_, err = p.Validate(videos(1, MB))
	assert.Equal(t, "Only images are allowed", limitError(t, err).Message())

	_, err = p.Validate(images(2, MB))
	assert.True(t, limitError(t, err).Has(CodeImageCount))
}

func TestClassify(t *testing.T) {
	k, ok := Classify(" IMAGE/PNG")
	assert.True(t, ok)
	assert.Equal(t, KindImage, k)

	_, ok = Classify("application/octet-stream")
	assert.False(t, ok)
}

func TestFromMultipartAndRequestLimit(t *testing.T) {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", "image/gif")
	files := FromMultipart([]*multipart.FileHeader{{Filename: "a.gif", Header: h, Size: 42}, nil})

	require.Len(t, files, 1)
	assert.Equal(t, File{Name: "a.gif", ContentType: "image/gif", Size: 42}, files[0])
	assert.Equal(t, int64(41*MB), RequestLimit(PostMediaPolicy()))
	assert.Equal(t, 7, PostMediaPolicy().MaxFiles())
}
