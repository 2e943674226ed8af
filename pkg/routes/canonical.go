package routes

import (
	"errors"
	"net/url"
	"strings"
)

// Canonicalization errors.
var (
	ErrBackslashInPath      = errors.New("path contains backslash")
	ErrNullByteInPath       = errors.New("path contains null byte")
	ErrInvalidPercentEscape = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot      = errors.New("path escapes root via ..")

	// ErrEncodedSlashInSegment rejects %2F and %5C, which would let one
	// segment stand for two once an upstream decodes it.
	ErrEncodedSlashInSegment = errors.New("encoded slash in path segment")
)

// Canonicalize strips any query string and fragment from target and
// normalizes the remaining path:
//   - decode percent escapes per segment
//   - ensure a leading slash
//   - collapse repeated slashes
//   - drop "." segments and resolve ".."
//   - drop a trailing slash (except for root)
func Canonicalize(target string) (string, error) {
	path := target
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/", nil
	}

	if strings.Contains(path, "\\") {
		return "", ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return "", ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return "", err
		}
	}

	segments := strings.Split(path, "/")
	result := make([]string, 0, len(segments))
	for _, raw := range segments {
		seg, err := decodeSegment(raw)
		if err != nil {
			return "", err
		}
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(result) == 0 {
				return "", ErrPathEscapesRoot
			}
			result = result[:len(result)-1]
		default:
			result = append(result, seg)
		}
	}
	return "/" + strings.Join(result, "/"), nil
}

// SplitTarget splits target into path, query (without "?") and fragment
// (without "#"). Nothing is decoded or normalized.
func SplitTarget(target string) (path, query, fragment string) {
	path, fragment, _ = strings.Cut(target, "#")
	path, query, _ = strings.Cut(path, "?")
	return path, query, fragment
}

func decodeSegment(raw string) (string, error) {
	if !strings.Contains(raw, "%") {
		return raw, nil
	}
	upper := strings.ToUpper(raw)
	if strings.Contains(upper, "%2F") || strings.Contains(upper, "%5C") {
		return "", ErrEncodedSlashInSegment
	}
	seg, err := url.PathUnescape(raw)
	if err != nil {
		return "", ErrInvalidPercentEscape
	}
	return seg, nil
}

func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
