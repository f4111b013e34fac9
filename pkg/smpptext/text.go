package smpptext

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/oarkflow/smpp-esme/pkg/smpp"
)

// ucs2 is UTF-16BE without a BOM, which is what data_coding 0x08 means on
// the wire.
var ucs2 = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// charmapFor returns the x/text codec for the single-byte text codings this
// library supports beyond the GSM default alphabet.
func charmapFor(dataCoding byte) encoding.Encoding {
	switch dataCoding {
	case smpp.DataCodingISO88591:
		return charmap.ISO8859_1
	case smpp.DataCodingISO88595:
		return charmap.ISO8859_5
	case smpp.DataCodingISO88598:
		return charmap.ISO8859_8
	default:
		return nil
	}
}

// EncodeShortMessage converts text to wire bytes in the requested data
// coding. If the text cannot be represented in the requested coding (a rune
// outside GSM 03.38 for the default coding, or outside the charmap for an
// ISO-8859 coding), it falls back to UCS-2 rather than failing. The coding
// actually used comes back alongside the bytes so the caller can put it in
// the PDU's data_coding field.
//
// Binary codings take no text input; callers with pre-encoded payloads use
// SplitBytes, which treats them as opaque.
func EncodeShortMessage(text string, dataCoding byte) ([]byte, byte, error) {
	switch dataCoding {
	case smpp.DataCodingDefault:
		if data, err := EncodeGSM7(text); err == nil {
			return data, dataCoding, nil
		}
	case smpp.DataCodingISO88591, smpp.DataCodingISO88595, smpp.DataCodingISO88598:
		if data, err := charmapFor(dataCoding).NewEncoder().Bytes([]byte(text)); err == nil {
			return data, dataCoding, nil
		}
	case smpp.DataCodingUCS2:
		// no fallback needed; handled below
	default:
		return nil, 0, &smpp.EncodingError{Field: "short_message",
			Err: fmt.Errorf("unhandled data coding 0x%02X for text input", dataCoding)}
	}

	data, err := ucs2.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, 0, &smpp.EncodingError{Field: "short_message", Err: err}
	}
	return data, smpp.DataCodingUCS2, nil
}

// DecodeShortMessage converts wire bytes back to text. GSM-default bytes
// are expected unpacked (one septet per byte), which is how SMSCs deliver
// short_message content over SMPP.
func DecodeShortMessage(data []byte, dataCoding byte) (string, error) {
	switch dataCoding {
	case smpp.DataCodingDefault:
		return DecodeGSM7(data), nil
	case smpp.DataCodingISO88591, smpp.DataCodingISO88595, smpp.DataCodingISO88598:
		out, err := charmapFor(dataCoding).NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	case smpp.DataCodingUCS2:
		if len(data)%2 != 0 {
			return "", fmt.Errorf("smpptext: UCS-2 payload has odd length %d", len(data))
		}
		out, err := ucs2.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	case smpp.DataCodingBinary, smpp.DataCodingBinary2:
		return string(data), nil
	default:
		return "", fmt.Errorf("smpptext: unhandled data coding 0x%02X", dataCoding)
	}
}
