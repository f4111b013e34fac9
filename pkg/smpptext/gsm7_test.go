package smpptext

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/oarkflow/smpp-esme/pkg/smpp"
)

func TestPack7Bit(t *testing.T) {
	got, err := Pack7Bit([]byte("7bit"))
	if err != nil {
		t.Fatalf("Pack7Bit: %v", err)
	}
	want, _ := hex.DecodeString("37719a0e")
	if !bytes.Equal(got, want) {
		t.Errorf("Pack7Bit(\"7bit\") = %x, want %x", got, want)
	}
}

func TestPack7BitRejectsOctets(t *testing.T) {
	if _, err := Pack7Bit([]byte{0x41, 0x80}); err == nil {
		t.Error("Pack7Bit accepted a byte above 0x7F")
	}
}

func TestPack7BitRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0x7F},
		[]byte("a"),
		[]byte("ab"),
		[]byte("abcdefg"),
		[]byte("abcdefgh"),
		[]byte("the quick brown fox jumps over the lazy dog 0123456789"),
	}
	for _, septets := range cases {
		packed, err := Pack7Bit(septets)
		if err != nil {
			t.Fatalf("Pack7Bit(%q): %v", septets, err)
		}
		if wantLen := (len(septets)*7 + 7) / 8; len(packed) != wantLen {
			t.Errorf("Pack7Bit(%q) produced %d bytes, want %d", septets, len(packed), wantLen)
		}
		unpacked, err := Unpack7Bit(packed, len(septets))
		if err != nil {
			t.Fatalf("Unpack7Bit(%x, %d): %v", packed, len(septets), err)
		}
		if !bytes.Equal(unpacked, septets) {
			t.Errorf("round trip of %q gave %q", septets, unpacked)
		}
	}
}

func TestUnpack7BitShortInput(t *testing.T) {
	if _, err := Unpack7Bit([]byte{0x37}, 4); err == nil {
		t.Error("Unpack7Bit accepted too few packed bytes")
	}
}

func TestEncodeGSM7(t *testing.T) {
	got, err := EncodeGSM7("hello @£$")
	if err != nil {
		t.Fatalf("EncodeGSM7: %v", err)
	}
	want := []byte{0x68, 0x65, 0x6C, 0x6C, 0x6F, 0x20, 0x00, 0x01, 0x02}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeGSM7 = %x, want %x", got, want)
	}
}

func TestEncodeGSM7Extension(t *testing.T) {
	got, err := EncodeGSM7("{€}")
	if err != nil {
		t.Fatalf("EncodeGSM7: %v", err)
	}
	want := []byte{0x1B, 0x28, 0x1B, 0x65, 0x1B, 0x29}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeGSM7(\"{€}\") = %x, want %x", got, want)
	}
}

func TestEncodeGSM7Unsupported(t *testing.T) {
	_, err := EncodeGSM7("可")
	var ee *smpp.EncodingError
	if !errors.As(err, &ee) {
		t.Fatalf("EncodeGSM7(\"可\") = %v, want *smpp.EncodingError", err)
	}
}

func TestDecodeGSM7RoundTrip(t *testing.T) {
	texts := []string{
		"",
		"hello world",
		"braces {and} €uro [brackets] ~tilde",
		"Ää Öö Ññ Üü àèéùìò",
		"ΔΦΓΛΩΠΨΣΘΞ",
	}
	for _, text := range texts {
		data, err := EncodeGSM7(text)
		if err != nil {
			t.Fatalf("EncodeGSM7(%q): %v", text, err)
		}
		if got := DecodeGSM7(data); got != text {
			t.Errorf("DecodeGSM7(EncodeGSM7(%q)) = %q", text, got)
		}
	}
}

func TestSeptetLength(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"", 0, true},
		{"abc", 3, true},
		{"a€b", 4, true}, // euro is an escape pair
		{"可", 0, false},
	}
	for _, tc := range cases {
		got, ok := SeptetLength(tc.text)
		if got != tc.want || ok != tc.ok {
			t.Errorf("SeptetLength(%q) = %d,%v, want %d,%v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}
