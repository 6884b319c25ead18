package pipeline

import (
	"strings"
	"testing"
)

func TestExtractMailTextPlain(t *testing.T) {
	raw := "From: Site <site@example.com>\r\n" +
		"Subject: order\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: 8bit\r\n\r\n" +
		"โรง2 สั่งคอนกรีต\r\nA42 12 แผ่น\r\n"

	got, err := ExtractMailText([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if got.Subject != "order" {
		t.Fatalf("subject=%q", got.Subject)
	}
	if !strings.Contains(got.Body, "A42 12 แผ่น") {
		t.Fatalf("body=%q", got.Body)
	}
}

func TestExtractMailTextHTMLOnly(t *testing.T) {
	raw := "From: Site <site@example.com>\r\n" +
		"Subject: order\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: 8bit\r\n\r\n" +
		"<html><body><style>p{}</style><div>โรง2 สั่งคอนกรีต<br>A42 12 แผ่น</div><p>รวม 1.5 คิว</p></body></html>\r\n"

	got, err := ExtractMailText([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(got.Body, "\n")
	if len(lines) < 3 {
		t.Fatalf("body=%q", got.Body)
	}
	items := ParseMessage(got.Body)
	if len(items) != 1 || strv(items[0].ProductCode) != "A42" {
		t.Fatalf("items=%+v", items)
	}
	if !items[0].CementQuantity.Valid || !items[0].CementQuantity.Decimal.Equal(dec("1.5")) {
		t.Fatalf("cement=%v", items[0].CementQuantity)
	}
}

func TestParseInputUnsupported(t *testing.T) {
	if _, err := ParseInput("docx", "x"); err == nil {
		t.Fatal("expected error")
	}
	items, err := ParseInput("text", "โรง1 สั่งคอนกรีต A35 20 แผ่น")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("len=%d", len(items))
	}
}
