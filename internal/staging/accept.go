package staging

import (
	"mime"
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]struct{}{
	"apng": {}, "avif": {}, "gif": {},
	"jpg": {}, "jpeg": {}, "jpe": {},
	"jif": {}, "jfif": {}, "png": {},
	"svg": {}, "webp": {},
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// IsImage reports whether name carries one of the recognized image extensions.
func IsImage(name string) bool {
	_, ok := imageExtensions[Extension(name)]

	return ok
}

// Accepts reports whether name passes an accept expression such as
// "image/*", ".pdf,.step" or "application/pdf". An empty expression accepts
// everything.
func Accepts(accept, name string) bool {
	accept = strings.TrimSpace(accept)
	if accept == "" || accept == "*" || accept == "*/*" {
		return true
	}

	ext := Extension(name)
	if ext == "" {
		return false
	}

	for _, class := range strings.Split(accept, ",") {
		class = strings.ToLower(strings.TrimSpace(class))

		switch {
		case class == "":
			continue
		case class == "image/*":
			if IsImage(name) {
				return true
			}
		case strings.HasPrefix(class, "."):
			if ext == class[1:] {
				return true
			}
		case strings.HasSuffix(class, "/*"):
			if strings.HasPrefix(mediaType(ext), strings.TrimSuffix(class, "*")) {
				return true
			}
		default:
			if mediaType(ext) == class {
				return true
			}
		}
	}

	return false
}

func mediaType(ext string) string {
	mt := mime.TypeByExtension("." + ext)
	if mt == "" {
		return ""
	}

	base, _, err := mime.ParseMediaType(mt)
	if err != nil {
		return ""
	}

	return base
}
