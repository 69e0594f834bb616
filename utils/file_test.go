package utils

import (
	"bytes"
	"context"
	"mime/multipart"
	"testing"

	"doin-challenge/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formFile(t *testing.T, name string, body []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("cover", name)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["cover"][0]
}

func TestReadFormFileSniffsContentType(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	body, contentType, err := ReadFormFile(formFile(t, "cover.png", png))
	require.NoError(t, err)
	assert.Equal(t, png, body)
	assert.Equal(t, "image/png", contentType)
}

func TestReadFormFileRejectsOversize(t *testing.T) {
	fh := formFile(t, "big.png", []byte("x"))
	fh.Size = MaxImageBytes + 1
	_, _, err := ReadFormFile(fh)
	assert.Error(t, err)
}

func TestR2PublicURL(t *testing.T) {
	r, err := NewR2Storage(context.Background(), config.R2Config{
		AccountID:       "acct",
		AccessKeyID:     "key",
		AccessKeySecret: "secret",
		Bucket:          "doin",
		CDNBaseURL:      "https://cdn.example.com/",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/challenges/1/cover.png", r.PublicURL("/challenges/1/cover.png"))

	r, err = NewR2Storage(context.Background(), config.R2Config{AccountID: "acct", Bucket: "doin"})
	require.NoError(t, err)
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com/doin/a.png", r.PublicURL("a.png"))
}
