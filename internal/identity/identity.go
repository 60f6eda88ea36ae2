// Package identity derives a content signature and media type for paths
// discovered by the monitor.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DirectorySignature is recorded instead of hashing directory contents.
	DirectorySignature = "directory"
	// DirectoryMediaType marks directory entries.
	DirectoryMediaType = "inode/directory"
	// ErrorSignature is recorded when a path cannot be read. Tagging proceeds
	// with this degraded marker so one unreadable file cannot block a batch.
	ErrorSignature = "error"
	// FallbackMediaType is used when neither sniffing nor the extension table
	// can classify a file.
	FallbackMediaType = "application/octet-stream"
)

const hashChunkSize = 64 * 1024

// Identity pairs a content signature with a media type.
type Identity struct {
	Signature string
	MediaType string
}

// extensionTypes backs the lookup used when content sniffing is inconclusive.
var extensionTypes = map[string]string{
	".txt":         "text/plain",
	".md":          "text/markdown",
	".json":        "application/json",
	".xml":         "application/xml",
	".pdf":         "application/pdf",
	".csv":         "text/csv",
	".py":          "text/x-python",
	".sh":          "text/x-shellscript",
	".bin":         "application/octet-stream",
	".safetensors": "application/octet-stream",
	".pt":          "application/octet-stream",
	".pth":         "application/octet-stream",
	".png":         "image/png",
	".jpg":         "image/jpeg",
	".jpeg":        "image/jpeg",
	".tif":         "image/tiff",
	".tiff":        "image/tiff",
	".mp3":         "audio/mpeg",
	".wav":         "audio/wav",
}

// Compute derives the identity for path. It never returns an error:
// directories and unreadable files yield sentinel values.
func Compute(path string) Identity {
	info, err := os.Stat(path)
	if err != nil {
		return Identity{Signature: ErrorSignature, MediaType: FallbackMediaType}
	}
	if info.IsDir() {
		return Identity{Signature: DirectorySignature, MediaType: DirectoryMediaType}
	}

	signature, err := hashFile(path)
	if err != nil {
		signature = ErrorSignature
	}
	return Identity{Signature: signature, MediaType: detectMediaType(path)}
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	digest := md5.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(digest, file, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

func detectMediaType(path string) string {
	if sniffed := sniffMediaType(path); sniffed != "" && sniffed != FallbackMediaType {
		return sniffed
	}
	ext := strings.ToLower(filepath.Ext(path))
	if mediaType, ok := extensionTypes[ext]; ok {
		return mediaType
	}
	return FallbackMediaType
}

func sniffMediaType(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return ""
	}
	if n == 0 {
		return ""
	}
	detected := http.DetectContentType(buf[:n])
	if idx := strings.IndexByte(detected, ';'); idx >= 0 {
		detected = strings.TrimSpace(detected[:idx])
	}
	// The sniffer reports UTF-8 text generically; the extension table is more
	// specific for the formats operators care about.
	if detected == "text/plain" {
		ext := strings.ToLower(filepath.Ext(path))
		if mediaType, ok := extensionTypes[ext]; ok {
			return mediaType
		}
	}
	return detected
}
