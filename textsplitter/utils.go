package textsplitter

import "strings"

// SplitTextKeepSeparator splits text on separator, reattaching the
// separator to the front of every part after the first.
func SplitTextKeepSeparator(text, separator string) []string {
	if separator == "" {
		if text == "" {
			return []string{}
		}
		return []string{text}
	}
	parts := strings.Split(text, separator)
	var result []string
	for i, part := range parts {
		if i > 0 {
			part = separator + part
		}
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
