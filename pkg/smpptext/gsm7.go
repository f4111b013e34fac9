// Package smpptext implements the short-message layer: GSM 03.38 default
// alphabet translation, 7-bit packing, encoding selection with UCS-2
// fallback, and multipart splitting with UDH generation.
package smpptext

import (
	"fmt"

	"github.com/oarkflow/smpp-esme/pkg/smpp"
)

// escape introduces a two-septet extension-table character.
const escape = 0x1B

// gsm7Alphabet maps runes to their GSM 03.38 default-alphabet septet.
var gsm7Alphabet = map[rune]byte{
	'@': 0x00, '£': 0x01, '$': 0x02, '¥': 0x03, 'è': 0x04, 'é': 0x05, 'ù': 0x06, 'ì': 0x07,
	'ò': 0x08, 'Ç': 0x09, '\n': 0x0A, 'Ø': 0x0B, 'ø': 0x0C, '\r': 0x0D, 'Å': 0x0E, 'å': 0x0F,
	'Δ': 0x10, '_': 0x11, 'Φ': 0x12, 'Γ': 0x13, 'Λ': 0x14, 'Ω': 0x15, 'Π': 0x16, 'Ψ': 0x17,
	'Σ': 0x18, 'Θ': 0x19, 'Ξ': 0x1A, 'Æ': 0x1C, 'æ': 0x1D, 'ß': 0x1E, 'É': 0x1F,
	' ': 0x20, '!': 0x21, '"': 0x22, '#': 0x23, '¤': 0x24, '%': 0x25, '&': 0x26, '\'': 0x27,
	'(': 0x28, ')': 0x29, '*': 0x2A, '+': 0x2B, ',': 0x2C, '-': 0x2D, '.': 0x2E, '/': 0x2F,
	'0': 0x30, '1': 0x31, '2': 0x32, '3': 0x33, '4': 0x34, '5': 0x35, '6': 0x36, '7': 0x37,
	'8': 0x38, '9': 0x39, ':': 0x3A, ';': 0x3B, '<': 0x3C, '=': 0x3D, '>': 0x3E, '?': 0x3F,
	'¡': 0x40, 'A': 0x41, 'B': 0x42, 'C': 0x43, 'D': 0x44, 'E': 0x45, 'F': 0x46, 'G': 0x47,
	'H': 0x48, 'I': 0x49, 'J': 0x4A, 'K': 0x4B, 'L': 0x4C, 'M': 0x4D, 'N': 0x4E, 'O': 0x4F,
	'P': 0x50, 'Q': 0x51, 'R': 0x52, 'S': 0x53, 'T': 0x54, 'U': 0x55, 'V': 0x56, 'W': 0x57,
	'X': 0x58, 'Y': 0x59, 'Z': 0x5A, 'Ä': 0x5B, 'Ö': 0x5C, 'Ñ': 0x5D, 'Ü': 0x5E, '§': 0x5F,
	'¿': 0x60, 'a': 0x61, 'b': 0x62, 'c': 0x63, 'd': 0x64, 'e': 0x65, 'f': 0x66, 'g': 0x67,
	'h': 0x68, 'i': 0x69, 'j': 0x6A, 'k': 0x6B, 'l': 0x6C, 'm': 0x6D, 'n': 0x6E, 'o': 0x6F,
	'p': 0x70, 'q': 0x71, 'r': 0x72, 's': 0x73, 't': 0x74, 'u': 0x75, 'v': 0x76, 'w': 0x77,
	'x': 0x78, 'y': 0x79, 'z': 0x7A, 'ä': 0x7B, 'ö': 0x7C, 'ñ': 0x7D, 'ü': 0x7E, 'à': 0x7F,
}

// gsm7Extension maps runes reached through the 0x1B escape. Each costs two
// septets on the wire.
var gsm7Extension = map[rune]byte{
	'\f': 0x0A,
	'^':  0x14,
	'{':  0x28,
	'}':  0x29,
	'\\': 0x2F,
	'[':  0x3C,
	'~':  0x3D,
	']':  0x3E,
	'|':  0x40,
	'€':  0x65,
}

var gsm7Reverse = map[byte]rune{}
var gsm7ExtensionReverse = map[byte]rune{}

func init() {
	for r, b := range gsm7Alphabet {
		gsm7Reverse[b] = r
	}
	for r, b := range gsm7Extension {
		gsm7ExtensionReverse[b] = r
	}
}

// EncodeGSM7 translates text into unpacked GSM 03.38 septets, one per byte
// (two for extension-table characters). A rune absent from both tables is an
// error rather than a silent substitution; EncodeShortMessage uses that
// failure to decide the UCS-2 fallback.
func EncodeGSM7(text string) ([]byte, error) {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if b, ok := gsm7Alphabet[r]; ok {
			out = append(out, b)
			continue
		}
		if b, ok := gsm7Extension[r]; ok {
			out = append(out, escape, b)
			continue
		}
		return nil, &smpp.EncodingError{Field: "short_message",
			Err: fmt.Errorf("rune %q (U+%04X) has no GSM 03.38 encoding", r, r)}
	}
	return out, nil
}

// DecodeGSM7 translates unpacked GSM 03.38 septets back into text. An
// escape followed by an unknown extension byte, or a trailing escape,
// decodes to the GSM convention of a space.
func DecodeGSM7(data []byte) string {
	out := make([]rune, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == escape {
			if i+1 < len(data) {
				i++
				if r, ok := gsm7ExtensionReverse[data[i]]; ok {
					out = append(out, r)
					continue
				}
			}
			out = append(out, ' ')
			continue
		}
		if r, ok := gsm7Reverse[b&0x7F]; ok {
			out = append(out, r)
		} else {
			out = append(out, ' ')
		}
	}
	return string(out)
}

// Pack7Bit packs septets LSB-first into ceil(7n/8) bytes: septet 0 fills
// bits 0-6 of byte 0, septet 1's low bit fills bit 7 of byte 0, and so on.
// Any input byte above 0x7F is an error.
func Pack7Bit(septets []byte) ([]byte, error) {
	out := make([]byte, 0, (len(septets)*7+7)/8)
	var carry uint
	var carryBits uint
	for i, s := range septets {
		if s > 0x7F {
			return nil, &smpp.EncodingError{Field: "short_message",
				Err: fmt.Errorf("byte 0x%02X at offset %d is not a septet", s, i)}
		}
		carry |= uint(s) << carryBits
		carryBits += 7
		for carryBits >= 8 {
			out = append(out, byte(carry))
			carry >>= 8
			carryBits -= 8
		}
	}
	if carryBits > 0 {
		out = append(out, byte(carry))
	}
	return out, nil
}

// Unpack7Bit reverses Pack7Bit, extracting exactly n septets. The septet
// count cannot be recovered from the packed bytes alone (7n/8 rounds up),
// so the caller supplies it from the UDL field or UDH length.
func Unpack7Bit(packed []byte, n int) ([]byte, error) {
	if need := (n*7 + 7) / 8; len(packed) < need {
		return nil, fmt.Errorf("smpptext: %d packed bytes cannot hold %d septets (need %d)", len(packed), n, need)
	}
	out := make([]byte, 0, n)
	var carry uint
	var carryBits uint
	for _, b := range packed {
		carry |= uint(b) << carryBits
		carryBits += 8
		for carryBits >= 7 && len(out) < n {
			out = append(out, byte(carry&0x7F))
			carry >>= 7
			carryBits -= 7
		}
		if len(out) == n {
			break
		}
	}
	return out, nil
}

// SeptetLength reports how many septets text occupies in GSM 03.38,
// counting extension-table characters twice. The second return is false if
// any rune has no GSM encoding at all.
func SeptetLength(text string) (int, bool) {
	var n int
	for _, r := range text {
		if _, ok := gsm7Alphabet[r]; ok {
			n++
			continue
		}
		if _, ok := gsm7Extension[r]; ok {
			n += 2
			continue
		}
		return 0, false
	}
	return n, true
}
