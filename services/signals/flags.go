package signals

import "homescout/models"

// ExtractFlags maps the configured flag keyword table over text. Names that
// are not listing flags are ignored.
func ExtractFlags(text string, table map[string][]string) models.Flags {
	var flags models.Flags
	normalized := Normalize(text)
	if normalized == "" {
		return flags
	}
	for name, keywords := range table {
		if ContainsAny(normalized, keywords) {
			flags.Set(name, true)
		}
	}
	return flags
}
