package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// MaxImageBytes caps uploaded images.
const MaxImageBytes = 8 << 20

// ReadFormFile reads an uploaded file and resolves its content type,
// sniffing the bytes when the client sent none.
func ReadFormFile(fileHeader *multipart.FileHeader) ([]byte, string, error) {
	if fileHeader.Size > MaxImageBytes {
		return nil, "", fmt.Errorf("file too large: %d bytes (max %d)", fileHeader.Size, MaxImageBytes)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}
	if len(body) > MaxImageBytes {
		return nil, "", fmt.Errorf("file too large (max %d bytes)", MaxImageBytes)
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}
	return body, contentType, nil
}
