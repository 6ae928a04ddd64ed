package ocr

import (
	"context"
	"errors"
	"strings"
)

const defaultMessage = "Failed to extract data from the document. Please try again or enter the data manually."

// messages is checked in order; the first entry with a matching substring wins.
var messages = []struct {
	needles []string
	message string
}{
	{[]string{"deadline exceeded", "timeout", "timed out"}, "The OCR service took too long to respond. Please try again."},
	{[]string{"status 401", "status 403", "api key", "unauthorized"}, "OCR service authentication failed. Check the configured API key."},
	{[]string{"status 429", "quota", "rate limit"}, "OCR usage limit reached. Please try again later."},
	{[]string{"status 413", "too large"}, "The file is too large to process. Upload a smaller file."},
	{[]string{"unsupported", "file type", "invalid image"}, "Unsupported file. Upload a clear image or PDF of the invoice."},
	{[]string{"no data", "no table"}, "No table could be found in the document."},
	{[]string{"empty file"}, "The uploaded file is empty."},
	{[]string{"connection refused", "no such host", "network is unreachable"}, "Could not reach the OCR service. Check your connection."},
}

// UserMessage maps an extraction error to text suitable for the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return messages[0].message
	}
	text := strings.ToLower(err.Error())
	for _, m := range messages {
		for _, n := range m.needles {
			if strings.Contains(text, n) {
				return m.message
			}
		}
	}
	return defaultMessage
}
