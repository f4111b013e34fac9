package smpptext

import (
	"bytes"
	"strings"
	"testing"

	"github.com/oarkflow/smpp-esme/pkg/smpp"
)

func checkUDH(t *testing.T, parts [][]byte) (ref byte) {
	t.Helper()
	for i, part := range parts {
		if len(part) < udhLen {
			t.Fatalf("part %d is %d bytes, shorter than a UDH", i, len(part))
		}
		if part[0] != 0x05 || part[1] != 0x00 || part[2] != 0x03 {
			t.Fatalf("part %d UDH prefix = % x", i, part[:3])
		}
		if part[3] != parts[0][3] {
			t.Errorf("part %d ref = %d, part 0 ref = %d", i, part[3], parts[0][3])
		}
		if int(part[4]) != len(parts) {
			t.Errorf("part %d total = %d, want %d", i, part[4], len(parts))
		}
		if int(part[5]) != i+1 {
			t.Errorf("part %d index = %d, want %d", i, part[5], i+1)
		}
	}
	return parts[0][3]
}

func payloads(parts [][]byte) []byte {
	var out []byte
	for _, part := range parts {
		out = append(out, part[udhLen:]...)
	}
	return out
}

func TestSplitSinglePart(t *testing.T) {
	text := strings.Repeat("A", 160)
	esmClass, coding, parts, err := Split(text, smpp.DataCodingDefault)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if esmClass != 0 {
		t.Errorf("esm_class = 0x%02X, want 0", esmClass)
	}
	if coding != smpp.DataCodingDefault {
		t.Errorf("coding = 0x%02X, want 0", coding)
	}
	if len(parts) != 1 || len(parts[0]) != 160 {
		t.Fatalf("got %d parts, first %d bytes; want one bare 160-septet part", len(parts), len(parts[0]))
	}
}

func TestSplitTwoParts(t *testing.T) {
	text := strings.Repeat("A", 161)
	esmClass, coding, parts, err := Split(text, smpp.DataCodingDefault)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if esmClass != smpp.EsmClassUDHI {
		t.Errorf("esm_class = 0x%02X, want 0x40", esmClass)
	}
	if coding != smpp.DataCodingDefault {
		t.Errorf("coding = 0x%02X, want 0", coding)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	checkUDH(t, parts)
	if n := len(parts[0]) - udhLen; n != 153 {
		t.Errorf("part 1 payload = %d septets, want 153", n)
	}
	if n := len(parts[1]) - udhLen; n != 8 {
		t.Errorf("part 2 payload = %d septets, want 8", n)
	}
	if got := DecodeGSM7(payloads(parts)); got != text {
		t.Errorf("reassembled text differs: %q", got)
	}
}

func TestSplitNeverDividesEscapePair(t *testing.T) {
	// the escape byte of the euro lands exactly on the 153-septet boundary
	text := strings.Repeat("A", 152) + "€" + strings.Repeat("B", 10)
	_, coding, parts, err := Split(text, smpp.DataCodingDefault)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if coding != smpp.DataCodingDefault {
		t.Fatalf("coding = 0x%02X", coding)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	checkUDH(t, parts)
	if n := len(parts[0]) - udhLen; n != 152 {
		t.Errorf("part 1 payload = %d septets, want 152 (escape pair pushed whole)", n)
	}
	p2 := parts[1][udhLen:]
	if !bytes.HasPrefix(p2, []byte{0x1B, 0x65}) {
		t.Errorf("part 2 payload starts % x, want the full escape pair", p2[:2])
	}
	if got := DecodeGSM7(payloads(parts)); got != text {
		t.Errorf("reassembled text differs: %q", got)
	}
}

func TestSplitUCS2(t *testing.T) {
	text := strings.Repeat("é", 203)
	esmClass, coding, parts, err := Split(text, smpp.DataCodingUCS2)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if esmClass != smpp.EsmClassUDHI {
		t.Errorf("esm_class = 0x%02X, want 0x40", esmClass)
	}
	if coding != smpp.DataCodingUCS2 {
		t.Errorf("coding = 0x%02X, want UCS-2", coding)
	}
	if len(parts) != 4 {
		t.Fatalf("got %d parts, want 4 (203 chars at 67 per part)", len(parts))
	}
	checkUDH(t, parts)
	for i, part := range parts[:3] {
		if n := len(part) - udhLen; n != 134 {
			t.Errorf("part %d payload = %d bytes, want 134", i+1, n)
		}
	}
	got, err := DecodeShortMessage(payloads(parts), smpp.DataCodingUCS2)
	if err != nil {
		t.Fatalf("DecodeShortMessage: %v", err)
	}
	if got != text {
		t.Errorf("reassembled text differs")
	}
}

func TestSplitUCS2SurrogatePair(t *testing.T) {
	// 66 BMP chars then an astral char: its high surrogate would be code
	// unit 67, so the whole pair must move to part 2
	text := strings.Repeat("x", 66) + "😀" + strings.Repeat("y", 10)
	_, coding, parts, err := Split(text, smpp.DataCodingUCS2)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if coding != smpp.DataCodingUCS2 {
		t.Fatalf("coding = 0x%02X", coding)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if n := len(parts[0]) - udhLen; n != 132 {
		t.Errorf("part 1 payload = %d bytes, want 132 (surrogate pair pushed whole)", n)
	}
	got, err := DecodeShortMessage(payloads(parts), smpp.DataCodingUCS2)
	if err != nil {
		t.Fatalf("DecodeShortMessage: %v", err)
	}
	if got != text {
		t.Errorf("reassembled text differs: %q", got)
	}
}

func TestSplitFallbackCarriesCoding(t *testing.T) {
	_, coding, parts, err := Split("可輸入英文單字", smpp.DataCodingDefault)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if coding != smpp.DataCodingUCS2 {
		t.Errorf("coding = 0x%02X, want UCS-2 after fallback", coding)
	}
	if len(parts) != 1 {
		t.Errorf("got %d parts, want 1", len(parts))
	}
}

func TestSplitBytesOpaque(t *testing.T) {
	data := bytes.Repeat([]byte{0xFF}, 300)
	esmClass, coding, parts := SplitBytes(data, smpp.DataCodingBinary)
	if esmClass != smpp.EsmClassUDHI {
		t.Errorf("esm_class = 0x%02X", esmClass)
	}
	if coding != smpp.DataCodingBinary {
		t.Errorf("coding changed to 0x%02X", coding)
	}
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3 (300 bytes at 134 per part)", len(parts))
	}
	checkUDH(t, parts)
	if !bytes.Equal(payloads(parts), data) {
		t.Errorf("reassembled bytes differ")
	}
}

func TestSplitRefAdvances(t *testing.T) {
	long := strings.Repeat("A", 200)
	_, _, parts1, err := Split(long, smpp.DataCodingDefault)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	_, _, parts2, err := Split(long, smpp.DataCodingDefault)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if checkUDH(t, parts1) == checkUDH(t, parts2) {
		t.Errorf("two consecutive splits used the same reference number")
	}
}
