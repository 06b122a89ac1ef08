package smugmug

import "strings"

// EncodeURLName implements spec.md §6.1's UrlName encoding: replace spaces
// with "-", drop commas, and title-case the first letter.
func EncodeURLName(name string) string {
	name = strings.ReplaceAll(name, ",", "")
	name = strings.ReplaceAll(name, " ", "-")

	if name == "" {
		return name
	}

	runes := []rune(name)
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]

	return string(runes)
}
