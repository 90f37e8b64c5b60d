package whatsapp

import "strings"

const jidSuffix = "@s.whatsapp.net"

// NormalizePhone strips everything but digits. Phone numbers are stored and
// compared digits-only; provider decoration happens only at this boundary.
func NormalizePhone(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ToJID decorates a digits-only phone with the WhatsApp JID suffix.
func ToJID(phone string) string {
	digits := NormalizePhone(phone)
	if digits == "" {
		return ""
	}
	if strings.Contains(phone, "@") {
		return phone
	}
	return digits + jidSuffix
}

// FromJID strips the JID suffix and returns the digits-only phone.
func FromJID(jid string) string {
	if at := strings.IndexByte(jid, '@'); at >= 0 {
		jid = jid[:at]
	}
	return NormalizePhone(jid)
}
