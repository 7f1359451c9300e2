package constants

import "strings"

// PhotoExtensions holds the accepted extensions for pickup/dropoff photos.
var PhotoExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
}

// ImportExtensions holds the accepted extensions for the event import folder.
var ImportExtensions = map[string]struct{}{
	"csv": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
