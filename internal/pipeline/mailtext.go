package pipeline

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/ledongthuc/pdf"

	"pccmo/internal/util"
)

// MailText is the order-bearing text recovered from a raw RFC 5322 message.
type MailText struct {
	Subject     string
	From        string
	Body        string
	Attachments []string
}

// ExtractMailText prefers the plain-text part, falls back to the visible text
// of the HTML part, and appends the text of any PDF attachment.
func ExtractMailText(raw []byte) (MailText, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return MailText{}, err
	}

	out := MailText{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
	}

	parts := make([]string, 0, 2)
	if hasPlainPart(env) && strings.TrimSpace(env.Text) != "" {
		parts = append(parts, env.Text)
	} else if env.HTML != "" {
		if text, err := htmlText(env.HTML); err == nil && text != "" {
			parts = append(parts, text)
		}
	} else if strings.TrimSpace(env.Text) != "" {
		parts = append(parts, env.Text)
	}

	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		out.Attachments = append(out.Attachments, filename)
		if !strings.HasSuffix(strings.ToLower(filename), ".pdf") && att.ContentType != "application/pdf" {
			continue
		}
		if text, err := pdfText(att.Content); err == nil && text != "" {
			parts = append(parts, text)
		}
	}

	out.Body = strings.TrimSpace(strings.Join(parts, "\n"))
	return out, nil
}

// hasPlainPart reports whether the sender supplied a text/plain body. enmime
// fills Text from the HTML part when there is none.
func hasPlainPart(env *enmime.Envelope) bool {
	if env.Root == nil {
		return false
	}
	return env.Root.BreadthMatchFirst(func(p *enmime.Part) bool {
		return p.ContentType == "text/plain" && p.Disposition != "attachment"
	}) != nil
}

func htmlText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script,style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")

	var lines []string
	doc.Find("p,div,li,tr,h1,h2,h3").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p,div,li,tr").Length() > 0 {
			return
		}
		for _, line := range util.SplitLines(s.Text()) {
			lines = append(lines, util.NormalizeSpaces(line))
		}
	})
	if len(lines) == 0 {
		return strings.Join(util.SplitLines(doc.Text()), "\n"), nil
	}
	return strings.Join(lines, "\n"), nil
}

func pdfText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		lines = append(lines, util.SplitLines(text)...)
	}
	return strings.Join(lines, "\n"), nil
}
