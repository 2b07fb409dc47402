package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/portfolio-site/backend/internal/catalog"
)

//go:embed templates/daily_article.html
var templateFS embed.FS

var dailyTemplate = template.Must(template.ParseFS(templateFS, "templates/daily_article.html"))

// TestSubjectPrefix marks manually triggered sends
const TestSubjectPrefix = "[TEST] "

// Digest is a rendered daily article email
type Digest struct {
	Subject string
	HTML    string
	Text    string
}

type dailyView struct {
	Subject  string
	SiteName string
	MoreURL  string
	Resource catalog.Resource
}

// RenderDaily renders the daily article email for r. siteURL is linked as
// "View More Articles" and its host is shown as the header.
func RenderDaily(r catalog.Resource, siteURL string, test bool) (*Digest, error) {
	subject := "Daily Read: " + r.Title
	if test {
		subject = TestSubjectPrefix + subject
	}

	view := dailyView{
		Subject:  subject,
		SiteName: siteName(siteURL),
		MoreURL:  strings.TrimRight(siteURL, "/") + "/resources",
		Resource: r,
	}

	var buf bytes.Buffer
	if err := dailyTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render daily article: %w", err)
	}

	text, err := PlainText(buf.String())
	if err != nil {
		return nil, err
	}

	return &Digest{
		Subject: subject,
		HTML:    buf.String(),
		Text:    text,
	}, nil
}

func siteName(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Hostname() == "" {
		return siteURL
	}
	return strings.TrimPrefix(strings.TrimSuffix(u.Hostname(), ".com"), "www.")
}
