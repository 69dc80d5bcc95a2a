package transport

import "strings"

// FormatPhoneE164 normalizes a US phone number to E.164.
// Accepts: (555) 123-4567, 555-123-4567, 5551234567, +15551234567.
func FormatPhoneE164(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' || r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, "+1") && len(digits) == 12 {
		return digits
	}
	if strings.HasPrefix(digits, "+") && len(digits) >= 11 {
		return digits
	}

	raw := strings.TrimPrefix(digits, "+")
	if len(raw) == 10 {
		return "+1" + raw
	}
	if len(raw) == 11 && strings.HasPrefix(raw, "1") {
		return "+" + raw
	}

	if strings.HasPrefix(digits, "+") {
		return digits
	}
	return "+" + digits
}
