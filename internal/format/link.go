package format

import "fmt"

// LinkStyle selects how links are written into headings and bodies.
type LinkStyle string

const (
	// LinkPlain writes "url title".
	LinkPlain LinkStyle = "plain"
	// LinkOrg writes "[[url][title]]".
	LinkOrg LinkStyle = "org"
	// LinkMarkdown writes "[title](url)".
	LinkMarkdown LinkStyle = "markdown"
)

// Link renders a link to url labelled title. An empty title renders the bare
// url in every style.
func (s LinkStyle) Link(url, title string) string {
	if title == "" {
		switch s {
		case LinkOrg:
			return fmt.Sprintf("[[%s]]", url)
		default:
			return url
		}
	}
	switch s {
	case LinkOrg:
		return fmt.Sprintf("[[%s][%s]]", url, title)
	case LinkMarkdown:
		return fmt.Sprintf("[%s](%s)", title, url)
	default:
		return url + " " + title
	}
}
