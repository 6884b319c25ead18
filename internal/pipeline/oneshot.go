package pipeline

import (
	"fmt"
	"os"

	"pccmo/internal"
)

// ParseInput parses an order from inline text, a raw .eml file or a PDF file
// without touching storage.
func ParseInput(inputType string, input string) ([]internal.OrderItem, error) {
	switch inputType {
	case "text":
		return ParseMessage(input), nil
	case "eml":
		blob, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		text, err := ExtractMailText(blob)
		if err != nil {
			return nil, err
		}
		return ParseMessage(text.Body), nil
	case "pdf":
		blob, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		text, err := pdfText(blob)
		if err != nil {
			return nil, err
		}
		return ParseMessage(text), nil
	default:
		return nil, fmt.Errorf("unsupported input type: %s", inputType)
	}
}
