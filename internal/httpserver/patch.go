package httpserver

import "strings"

// patch collects the columns a partial update will write.
//
// Absent fields are never written. Strings that are blank after trimming
// are treated as absent too, so clients cannot clear a text column by
// sending ""; numbers and booleans are written whenever present, so an
// explicit 0 or false sticks.
type patch map[string]any

func (p patch) str(col string, v *string) {
	if v == nil {
		return
	}
	if t := strings.TrimSpace(*v); t != "" {
		p[col] = t
	}
}

func setValue[T any](p patch, col string, v *T) {
	if v != nil {
		p[col] = *v
	}
}
