package media

import "strings"

// Container formats a recorder may produce.
const (
	FormatWebM = "audio/webm"
	FormatMP4  = "audio/mp4"
	FormatWAV  = "audio/wav"
)

// FormatPreference is an ordered fallback chain ending in a hard default that
// is used even when nothing in the chain is supported.
type FormatPreference struct {
	Preferred string
	Fallbacks []string
	Default   string
}

// DefaultFormats tries webm, then mp4, then wav, and otherwise records webm.
var DefaultFormats = FormatPreference{
	Preferred: FormatWebM,
	Fallbacks: []string{FormatMP4, FormatWAV},
	Default:   FormatWebM,
}

// Negotiate returns the first format in the chain the runtime supports.
func Negotiate(pref FormatPreference, supports func(mimeType string) bool) string {
	candidates := append([]string{pref.Preferred}, pref.Fallbacks...)
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if supports != nil && supports(candidate) {
			return candidate
		}
	}
	return pref.Default
}

// Extension maps a mime type to the file extension used for uploads,
// "audio/webm;codecs=opus" -> "webm".
func Extension(mimeType string) string {
	base := mimeType
	if idx := strings.Index(base, ";"); idx >= 0 {
		base = base[:idx]
	}
	_, sub, ok := strings.Cut(strings.TrimSpace(base), "/")
	if !ok || sub == "" {
		return "webm"
	}
	return sub
}
