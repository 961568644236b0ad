package utils

import (
	"net/url"
	"os"
	"strings"
)

// BuildObjectAccessURL returns the public URL for objectKey.
// Without STORAGE_ACCESS_BASE_URL the key points at storage.googleapis.com.
func BuildObjectAccessURL(objectKey string) string {
	if base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL")); base != "" {
		return strings.TrimRight(base, "/") + "/" + objectKey
	}
	if bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET")); bucket != "" {
		return "https://storage.googleapis.com/" + bucket + "/" + objectKey
	}
	return objectKey
}

// ExtractObjectKeyFromURL reverses BuildObjectAccessURL. Returns "" for foreign URLs.
func ExtractObjectKeyFromURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || strings.Contains(rawURL, "..") {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		return strings.TrimPrefix(rawURL, "/")
	}
	if base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL")); base != "" {
		prefix := strings.TrimRight(base, "/") + "/"
		if strings.HasPrefix(rawURL, prefix) {
			return strings.TrimPrefix(rawURL, prefix)
		}
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Host)
	p := strings.TrimPrefix(parsed.Path, "/")
	switch {
	case host == "storage.googleapis.com" || host == "storage.cloud.google.com":
		parts := strings.SplitN(p, "/", 2)
		if len(parts) == 2 {
			return parts[1]
		}
	case strings.HasSuffix(host, ".storage.googleapis.com"):
		return p
	}
	return ""
}
