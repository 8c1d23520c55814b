package kb

import (
	"fmt"
	"regexp"
	"strings"
)

// CompilePattern compiles a detection pattern string. Patterns may be
// written either as a bare regex ("hazard\s+rate") or in /body/flags
// form ("/hazard\s+rate/i"). Recognized flags: i (case-insensitive),
// m (multiline), s (dot matches newline); a g flag is accepted and
// ignored since matching is per-pattern, not per-occurrence.
func CompilePattern(raw string) (*regexp.Regexp, error) {
	body, flags, err := splitPattern(raw)
	if err != nil {
		return nil, err
	}

	var prefix strings.Builder
	for _, f := range flags {
		switch f {
		case 'i':
			prefix.WriteString("(?i)")
		case 'm':
			prefix.WriteString("(?m)")
		case 's':
			prefix.WriteString("(?s)")
		case 'g':
			// global flag has no meaning here
		default:
			return nil, fmt.Errorf("unsupported pattern flag %q in %q", string(f), raw)
		}
	}

	return regexp.Compile(prefix.String() + body)
}

// splitPattern separates /body/flags form into body and flags. Anything
// not wrapped in slashes is treated as a bare pattern with no flags.
func splitPattern(raw string) (string, string, error) {
	if len(raw) < 2 || !strings.HasPrefix(raw, "/") {
		return raw, "", nil
	}

	end := strings.LastIndex(raw, "/")
	if end == 0 {
		// A single leading slash with no closing slash is a bare pattern.
		return raw, "", nil
	}

	body := raw[1:end]
	flags := raw[end+1:]
	if body == "" {
		return "", "", fmt.Errorf("empty pattern body in %q", raw)
	}
	return body, flags, nil
}
