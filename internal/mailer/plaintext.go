package mailer

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// blockTags end a line in the plain text rendering
var blockTags = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true,
	"br": true, "hr": true, "li": true, "tr": true,
}

// PlainText renders an HTML email body as text for the text/plain part.
// Links keep their target in brackets after the link text.
func PlainText(body string) (string, error) {
	tokenizer := html.NewTokenizer(strings.NewReader(body))
	var lines []string
	var line strings.Builder
	var href string
	skip := 0

	flush := func() {
		if text := cleanText(line.String()); text != "" {
			lines = append(lines, text)
		}
		line.Reset()
	}

	for {
		tokenType := tokenizer.Next()

		switch tokenType {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				flush()
				return strings.Join(lines, "\n"), nil
			}
			return "", fmt.Errorf("failed to parse email html: %w", tokenizer.Err())

		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "head", "style", "script":
				if tokenType == html.StartTagToken {
					skip++
				}
			case "a":
				for _, attr := range token.Attr {
					if attr.Key == "href" {
						href = attr.Val
					}
				}
			default:
				if blockTags[token.Data] {
					flush()
				}
			}

		case html.EndTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "head", "style", "script":
				if skip > 0 {
					skip--
				}
			case "a":
				if href != "" {
					line.WriteString(" [" + href + "] ")
					href = ""
				}
			default:
				if blockTags[token.Data] {
					flush()
				}
			}

		case html.TextToken:
			if skip == 0 {
				line.Write(tokenizer.Text())
				line.WriteByte(' ')
			}
		}
	}
}

// cleanText removes excessive whitespace
func cleanText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
