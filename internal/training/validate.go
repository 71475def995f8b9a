package training

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Extensions accepted as training material. Documents plus the common
// video containers the transcoder understands.
var allowedExtensions = map[string]struct{}{
	".yaml": {},
	".yml":  {},
	".md":   {},
	".json": {},
	".pdf":  {},
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
	".mkv":  {},
}

// ValidateFileName rejects files whose extension is not on the allow list.
func ValidateFileName(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return fmt.Errorf("file %q has no extension", name)
	}
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("file type %q is not supported", ext)
	}
	return nil
}

// ValidateURL requires an absolute http or https URL with a host.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url %q", raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("url %q is missing a host", raw)
	}
	return nil
}
