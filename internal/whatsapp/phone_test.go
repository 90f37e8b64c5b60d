package whatsapp

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+55 (11) 99999-0000", "5511999990000"},
		{"5511999990000", "5511999990000"},
		{"  11 98888-7777 ", "11988887777"},
		{"", ""},
		{"abc", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestToJID(t *testing.T) {
	if got := ToJID("+55 11 99999-0000"); got != "5511999990000@s.whatsapp.net" {
		t.Errorf("unexpected jid: %s", got)
	}
	if got := ToJID("5511999990000@s.whatsapp.net"); got != "5511999990000@s.whatsapp.net" {
		t.Errorf("already-decorated jid mangled: %s", got)
	}
	if got := ToJID(""); got != "" {
		t.Errorf("expected empty jid, got %s", got)
	}
}

func TestFromJID(t *testing.T) {
	if got := FromJID("5511999990000@s.whatsapp.net"); got != "5511999990000" {
		t.Errorf("unexpected phone: %s", got)
	}
	if got := FromJID("5511999990000"); got != "5511999990000" {
		t.Errorf("bare phone mangled: %s", got)
	}
}
