package smpptext

import (
	"sync"

	"github.com/oarkflow/smpp-esme/pkg/smpp"
)

// Per-part capacities. GSM limits are in septets; the rest are in bytes
// (UCS-2's 70-character limit is its 140-byte limit). A 6-byte UDH costs 7
// septets of a GSM part and 6 bytes of everything else.
const (
	gsmSingleMax = 160
	gsmPartMax   = 153

	byteSingleMax = 140
	bytePartMax   = 134
)

// udhLen is the length of the concatenation UDH this package generates:
// the 05 length byte, then the 00 03 <ref> <total> <index> element.
const udhLen = 6

// refCounter allocates the concatenation reference number carried in every
// part's UDH, wrapping within [0,255]. A counter rather than a random draw
// so that two long messages split back-to-back never collide.
var refCounter struct {
	mu  sync.Mutex
	cur uint8
}

func nextRef() uint8 {
	refCounter.mu.Lock()
	defer refCounter.mu.Unlock()
	ref := refCounter.cur
	refCounter.cur++
	return ref
}

func udh(ref uint8, total, index int) []byte {
	return []byte{0x05, 0x00, 0x03, ref, byte(total), byte(index)}
}

func prependUDH(chunks [][]byte) [][]byte {
	ref := nextRef()
	parts := make([][]byte, len(chunks))
	for i, chunk := range chunks {
		part := make([]byte, 0, udhLen+len(chunk))
		part = append(part, udh(ref, len(chunks), i+1)...)
		parts[i] = append(part, chunk...)
	}
	return parts
}

// chunkGSM splits unpacked GSM septets into chunks of at most size septets,
// never separating an escape from its extension byte.
func chunkGSM(data []byte, size int) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		if n < len(data) && data[n-1] == escape {
			n--
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

// chunkUCS2 splits UTF-16BE bytes into chunks of at most size bytes on
// 2-byte code-unit boundaries, never separating a surrogate pair.
func chunkUCS2(data []byte, size int) [][]byte {
	size -= size % 2
	var chunks [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		if n < len(data) && n >= 2 {
			last := uint16(data[n-2])<<8 | uint16(data[n-1])
			if last >= 0xD800 && last <= 0xDBFF {
				n -= 2
			}
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

func chunkBytes(data []byte, size int) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

func assemble(data []byte, dataCoding byte, chunk func([]byte, int) [][]byte, singleMax, partMax int) (byte, byte, [][]byte) {
	if len(data) <= singleMax {
		return 0x00, dataCoding, [][]byte{data}
	}
	return smpp.EsmClassUDHI, dataCoding, prependUDH(chunk(data, partMax))
}

// Split encodes text in the requested data coding (with EncodeShortMessage's
// UCS-2 fallback) and, if the result exceeds one part, splits it into
// UDH-prefixed parts, each submitted to the SMSC as its own submit_sm.
// Returns the esm_class to submit with (0x00, or 0x40 when the parts carry
// a UDH), the data_coding actually used, and the parts. Splitting honors
// character boundaries: a GSM escape pair or a UCS-2 surrogate pair is
// never divided between two parts.
func Split(text string, dataCoding byte) (esmClass byte, coding byte, parts [][]byte, err error) {
	data, coding, err := EncodeShortMessage(text, dataCoding)
	if err != nil {
		return 0, 0, nil, err
	}
	esmClass, coding, parts = SplitBytes(data, coding)
	return esmClass, coding, parts, nil
}

// SplitBytes splits an already-encoded payload on the selected coding's
// byte limits, treating the bytes as opaque apart from the boundary rules
// the coding imposes (escape pairs for GSM, code-unit pairs for UCS-2).
func SplitBytes(data []byte, dataCoding byte) (esmClass byte, coding byte, parts [][]byte) {
	switch dataCoding {
	case smpp.DataCodingDefault:
		return assemble(data, dataCoding, chunkGSM, gsmSingleMax, gsmPartMax)
	case smpp.DataCodingUCS2:
		return assemble(data, dataCoding, chunkUCS2, byteSingleMax, bytePartMax)
	default:
		return assemble(data, dataCoding, chunkBytes, byteSingleMax, bytePartMax)
	}
}
