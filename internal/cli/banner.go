package cli

import (
	"fmt"
	"strings"
)

// Banner renders the start-up line: the name shaded from BrandBlue to BrandPurple,
// then the version and listen address.
func Banner(name, version, addr string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		progress := 0.0
		if len(runes) > 1 {
			progress = float64(i) / float64(len(runes)-1)
		}
		b.WriteString(Gradient(string(r), BrandBlue, BrandPurple, progress))
	}
	return fmt.Sprintf("%s %s %s %s", b.String(), Style(version, Dim), Arrow(), Style("http://"+addr, Bold))
}
