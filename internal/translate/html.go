package translate

import (
	"strings"

	"golang.org/x/net/html"
)

// tagTopology lists the tag events of an HTML fragment in document order.
// Text content is ignored, so a faithful translation of a fragment has an
// identical topology.
func tagTopology(fragment string) []string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var tags []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken:
			name, _ := z.TagName()
			tags = append(tags, string(name))
		case html.EndTagToken:
			name, _ := z.TagName()
			tags = append(tags, "/"+string(name))
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			tags = append(tags, string(name)+"/")
		}
	}
}

func topologyEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
