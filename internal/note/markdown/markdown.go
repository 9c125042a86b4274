// Package markdown derives the markdown rendition stored alongside a note's
// content when an editor does not send one.
package markdown

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var htmlTag = regexp.MustCompile(`(?i)<(p|div|br|h[1-6]|ul|ol|li|strong|em|b|i|a|code|pre|blockquote|span)[\s/>]`)

// LooksLikeHTML reports whether content carries HTML markup from a rich-text editor.
func LooksLikeHTML(content string) bool {
	return htmlTag.MatchString(content)
}

// Derive returns explicit when set. Otherwise HTML content is converted to
// markdown and plain content is used as is.
func Derive(content, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if !LooksLikeHTML(content) {
		return content, nil
	}
	md, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}
