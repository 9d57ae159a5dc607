package render

// Glamour's standard style names
const (
	StyleDark    = "dark"
	StyleLight   = "light"
	StyleDracula = "dracula"
	StyleTokyo   = "tokyo-night"
	StylePink    = "pink"
	StyleNoTTY   = "notty"
	StyleASCII   = "ascii"
)

// StyleNames lists the styles that need no JSON file
func StyleNames() []string {
	return []string{StyleDark, StyleLight, StyleDracula, StyleTokyo, StylePink, StyleNoTTY, StyleASCII}
}

// IsStandardStyle reports whether style is one of glamour's built-in styles
func IsStandardStyle(style string) bool {
	for _, s := range StyleNames() {
		if s == style {
			return true
		}
	}
	return false
}
