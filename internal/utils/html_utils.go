package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var emailStyles = map[string]string{
	"h1":   "color:#166534;font-size:22px;margin:0 0 16px;",
	"h2":   "color:#166534;font-size:18px;margin:16px 0 8px;",
	"p":    "font-size:15px;line-height:1.5;margin:0 0 12px;",
	"a":    "color:#16a34a;font-weight:bold;",
	"code": "font-family:monospace;font-size:18px;letter-spacing:2px;background:#f0fdf4;padding:2px 6px;",
	"li":   "margin:0 0 6px;",
}

// StyleEmailHTML inlines styles on rendered Markdown, since most mail clients
// ignore <style> blocks, and rewrites relative links against baseURL.
func StyleEmailHTML(htmlStr, baseURL string) string {
	if htmlStr == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}

	for tag, style := range emailStyles {
		doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
			s.SetAttr("style", style)
		})
	}

	base := strings.TrimRight(baseURL, "/")
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || base == "" {
			return
		}
		if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
			s.SetAttr("href", base+href)
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return htmlStr
	}
	return `<div style="font-family:Arial,sans-serif;color:#1f2937;max-width:560px;margin:0 auto;padding:16px;">` +
		out + `</div>`
}
