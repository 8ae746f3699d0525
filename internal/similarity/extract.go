package similarity

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// excludedTags never contribute to main content.
var excludedTags = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {},
	"header": {}, "footer": {}, "nav": {}, "aside": {},
}

// boilerplatePattern matches class and id values of chrome elements
// that repeat across pages and would mask real content differences.
var boilerplatePattern = regexp.MustCompile(
	`(?i)(menu|nav|header|footer|sidebar|cookie|banner|popup|modal|subscribe|breadcrumbs?)`)

// MainText returns the page's content text: the first of main, article,
// or body, with chrome elements and boilerplate-classed subtrees
// removed, whitespace-normalized and lower-cased. Case differences are
// not content differences.
func MainText(doc *goquery.Document) string {
	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("article").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return ""
	}

	var sb strings.Builder
	for _, n := range root.Nodes {
		appendContentText(&sb, n)
	}
	return strings.ToLower(strings.Join(strings.Fields(sb.String()), " "))
}

func appendContentText(sb *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		if _, skip := excludedTags[n.Data]; skip {
			return
		}
		if isBoilerplate(n) {
			return
		}
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendContentText(sb, c)
	}
}

func isBoilerplate(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" && attr.Key != "id" {
			continue
		}
		if boilerplatePattern.MatchString(attr.Val) {
			return true
		}
	}
	return false
}
