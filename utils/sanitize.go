package utils

import (
	"net/url"
	"strings"
)

// SanitizeHeaderFilename removes characters that can break headers.
func SanitizeHeaderFilename(name string) string {
	clean := strings.TrimSpace(name)
	clean = strings.ReplaceAll(clean, "\r", "")
	clean = strings.ReplaceAll(clean, "\n", "")
	clean = strings.ReplaceAll(clean, "\"", "")
	clean = strings.ReplaceAll(clean, "\\", "")
	if clean == "" {
		return "download"
	}
	return clean
}

// ContentDisposition builds an attachment header carrying both an ASCII
// fallback and the UTF-8 name.
func ContentDisposition(name string) string {
	clean := SanitizeHeaderFilename(name)
	ascii := make([]rune, 0, len(clean))
	for _, r := range clean {
		if r < 0x20 || r > 0x7e {
			r = '_'
		}
		ascii = append(ascii, r)
	}
	return `attachment; filename="` + string(ascii) + `"; filename*=UTF-8''` + url.PathEscape(clean)
}

// ShareLink is the public download URL for a key.
func ShareLink(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/download/" + url.PathEscape(key)
}
