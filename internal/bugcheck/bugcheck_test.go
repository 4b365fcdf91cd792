package bugcheck

import (
	"strings"
	"testing"
)

func TestLookupKnownCode(t *testing.T) {
	info := Lookup(0xD1)
	if info.Name != "DRIVER_IRQL_NOT_LESS_OR_EQUAL" {
		t.Errorf("Name = %q", info.Name)
	}
	if info.Description == "" || len(info.CommonCauses) == 0 || len(info.Remediation) == 0 {
		t.Errorf("entry incomplete: %+v", info)
	}
}

func TestLookupUnknownCodeIsStructured(t *testing.T) {
	info := Lookup(0xDEADBEEF)
	if info.Code != 0xDEADBEEF {
		t.Errorf("Code = 0x%X", info.Code)
	}
	if !strings.Contains(info.Name, "UNKNOWN") {
		t.Errorf("Name = %q, want an UNKNOWN marker", info.Name)
	}
	if info.Description == "" || len(info.Remediation) == 0 {
		t.Errorf("unknown entry must still carry description and remediation: %+v", info)
	}
}

func TestIsCommon(t *testing.T) {
	for _, code := range []uint32{0x0A, 0x1E, 0x3B, 0x50, 0x7E, 0xD1} {
		if !IsCommon(code) {
			t.Errorf("IsCommon(0x%X) = false", code)
		}
	}
	// Frequent in the wild but deliberately outside the fixed set.
	for _, code := range []uint32{0x7A, 0x124, 0x133, 0xEF} {
		if IsCommon(code) {
			t.Errorf("IsCommon(0x%X) = true", code)
		}
	}
}

func TestParseCode(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
	}{
		{"0x3B", 0x3B},
		{"0X3b", 0x3B},
		{"3B", 0x3B},
		{"59", 59},
		{" 0xD1 ", 0xD1},
	}
	for _, tt := range cases {
		got, err := ParseCode(tt.in)
		if err != nil {
			t.Errorf("ParseCode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCode(%q) = 0x%X, want 0x%X", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"", "0x", "banana", "0xZZ"} {
		if _, err := ParseCode(bad); err == nil {
			t.Errorf("ParseCode(%q) accepted", bad)
		}
	}
}

func TestCodesSortedAscending(t *testing.T) {
	infos := Codes()
	if len(infos) != 16 {
		t.Fatalf("table has %d entries, want 16", len(infos))
	}
	for i := 1; i < len(infos); i++ {
		if infos[i-1].Code >= infos[i].Code {
			t.Errorf("codes out of order at %d: 0x%X >= 0x%X", i, infos[i-1].Code, infos[i].Code)
		}
	}
}

func TestEveryEntryCodeMatchesKey(t *testing.T) {
	for code, info := range table {
		if info.Code != code {
			t.Errorf("entry 0x%X carries code 0x%X", code, info.Code)
		}
	}
}
