package logger

import "strings"

// RedactPhone masks a phone number or WhatsApp JID for safe logging.
// "201234567890@s.whatsapp.net" → "2012***@s.whatsapp.net"
// Short numbers (≤4 digits) are fully masked.
func RedactPhone(id string) string {
	number, server, hasServer := strings.Cut(id, "@")
	if len(number) > 4 {
		number = number[:4] + "***"
	} else {
		number = "***"
	}
	if hasServer {
		return number + "@" + server
	}
	return number
}
