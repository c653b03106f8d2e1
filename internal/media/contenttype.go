package media

import (
	"path"
	"strings"
)

const octetStream = "application/octet-stream"

var photoTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",
}

// PhotoContentType returns the MIME type of a stored photo key.
func PhotoContentType(key string) string {
	return lookup(photoTypes, key)
}

// VideoContentType returns the MIME type of a stored video key.
func VideoContentType(key string) string {
	return lookup(videoTypes, key)
}

// IsPhoto reports whether the key has a recognised photo extension.
func IsPhoto(key string) bool {
	_, ok := photoTypes[strings.ToLower(path.Ext(key))]
	return ok
}

// IsVideo reports whether the key has a recognised video extension.
func IsVideo(key string) bool {
	_, ok := videoTypes[strings.ToLower(path.Ext(key))]
	return ok
}

func lookup(table map[string]string, key string) string {
	if ct, ok := table[strings.ToLower(path.Ext(key))]; ok {
		return ct
	}
	return octetStream
}
