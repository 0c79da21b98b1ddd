package probe

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
)

// CaptchaSelector matches the widgets of the captcha providers seen on the site.
const CaptchaSelector = ".g-recaptcha, .h-captcha, .smart-captcha, [data-sitekey], " +
	"iframe[src*='recaptcha'], iframe[src*='hcaptcha'], iframe[src*='smartcaptcha'], " +
	"input[name*='captcha'], img[src*='captcha']"

// Form describes an HTML form.
type Form struct {
	Action string
	Method string
	Fields []string
	// Captcha is set if the form contains a captcha widget.
	Captcha bool
	// Honeypots are hidden text inputs used to detect bots filling every field.
	Honeypots []string
}

// HasField reports whether the form has an input with the given name.
func (f Form) HasField(name string) bool {
	return lo.Contains(f.Fields, name)
}

// Page is the anti-bot relevant content of a page.
type Page struct {
	URL        string
	StatusCode int
	Forms      []Form
	// Captcha is set if any captcha widget is on the page, inside a form or not.
	Captcha bool
}

// Protected reports whether the page uses a captcha or a honeypot field.
func (p Page) Protected() bool {
	return p.Captcha || lo.SomeBy(p.Forms, func(f Form) bool { return len(f.Honeypots) > 0 })
}

// Inspect loads rawURL and inspects its forms. A status rejected by the policy is an error.
func (c *Client) Inspect(ctx context.Context, rawURL string) (Page, error) {
	resp, err := c.request(ctx, rawURL)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	if !c.options.Policy.Accept(resp.StatusCode) {
		return Page{URL: rawURL, StatusCode: resp.StatusCode}, fmt.Errorf("%s returned HTTP %d", rawURL, resp.StatusCode)
	}
	page, err := InspectHTML(io.LimitReader(resp.Body, 4<<20), rawURL)
	page.StatusCode = resp.StatusCode
	return page, err
}

// InspectHTML inspects the forms of an HTML document, e.g. the content of a browser page.
// Relative form actions are resolved against pageURL.
func InspectHTML(r io.Reader, pageURL string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("parsing page: %w", err)
	}
	base, _ := url.Parse(pageURL)

	page := Page{
		URL:     pageURL,
		Captcha: doc.Find(CaptchaSelector).Length() > 0,
	}
	doc.Find("form").Each(func(_ int, sel *goquery.Selection) {
		page.Forms = append(page.Forms, parseForm(sel, base))
	})
	return page, nil
}

func parseForm(sel *goquery.Selection, base *url.URL) Form {
	form := Form{
		Method:  strings.ToUpper(strings.TrimSpace(sel.AttrOr("method", "GET"))),
		Captcha: sel.Find(CaptchaSelector).Length() > 0,
	}
	action := strings.TrimSpace(sel.AttrOr("action", ""))
	if base != nil {
		if u, err := base.Parse(action); err == nil {
			action = u.String()
		}
	}
	form.Action = action

	sel.Find("input, textarea, select").Each(func(_ int, field *goquery.Selection) {
		name, ok := field.Attr("name")
		if !ok || name == "" {
			return
		}
		form.Fields = append(form.Fields, name)
		if isHoneypot(field) {
			form.Honeypots = append(form.Honeypots, name)
		}
	})
	form.Fields = lo.Uniq(form.Fields)
	return form
}

func isHoneypot(field *goquery.Selection) bool {
	if goquery.NodeName(field) != "input" {
		return false
	}
	typ := strings.ToLower(field.AttrOr("type", "text"))
	if typ != "text" && typ != "email" {
		return false
	}
	style := strings.ReplaceAll(strings.ToLower(field.AttrOr("style", "")), " ", "")
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return true
	}
	_, hidden := field.Attr("hidden")
	return hidden || (field.AttrOr("tabindex", "") == "-1" && field.AttrOr("autocomplete", "") == "off")
}
