package media

import "strings"

// Kind selects how an attachment location is rendered.
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
)

// Classify looks at the location suffix only; content is never fetched.
func Classify(location string) Kind {
	if strings.HasSuffix(strings.ToLower(location), ".pdf") {
		return KindPDF
	}
	return KindImage
}

// FileExtension returns the text after the last dot of name, or "" when the
// name has no dot or ends with one.
func FileExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return name[idx+1:]
}
