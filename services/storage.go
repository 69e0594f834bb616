package services

import (
	"context"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// Uploader stores a file and returns its public URL.
type Uploader interface {
	UploadFormFile(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
}

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// imageKey builds an object key like challenges/<id>/cover.png.
func imageKey(prefix, id, name string, fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !imageExtensions[ext] {
		return "", invalidf("unsupported image type %q", ext)
	}
	return prefix + "/" + id + "/" + name + ext, nil
}
