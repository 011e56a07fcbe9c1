package tlv

// Class distinguishes application-tagged primitives from context-tagged
// constructed/primitive data (Clause 20.2.1.1).
type Class uint8

const (
	ClassApplication Class = 0
	ClassContext     Class = 1
)

// ApplicationTag enumerates the primitive application tag numbers.
type ApplicationTag uint8

const (
	TagNull           ApplicationTag = 0
	TagBoolean        ApplicationTag = 1
	TagUnsigned       ApplicationTag = 2
	TagSigned         ApplicationTag = 3
	TagReal           ApplicationTag = 4
	TagDouble         ApplicationTag = 5
	TagOctetString    ApplicationTag = 6
	TagCharacterString ApplicationTag = 7
	TagBitString      ApplicationTag = 8
	TagEnumerated     ApplicationTag = 9
	TagDate           ApplicationTag = 10
	TagTime           ApplicationTag = 11
	TagObjectID       ApplicationTag = 12
)

// kind distinguishes a decoded header as a literal-length primitive, an
// opening tag, or a closing tag. Constructed sequences are delimited by a
// pair of opening/closing tags sharing the same tag number (Clause 20.2.1.3).
type kind uint8

const (
	kindPrimitive kind = iota
	kindOpening
	kindClosing
)

// Header is a decoded tag header: tag number, class, length (primitives)
// or marker kind (opening/closing), and the number of bytes it occupied.
type Header struct {
	Number   uint32
	Class    Class
	Length   int // valid when Kind == kindPrimitive
	Kind     kind
	HeaderLen int
}

func (h Header) IsOpening() bool { return h.Kind == kindOpening }
func (h Header) IsClosing() bool { return h.Kind == kindClosing }

// smallHeaderTable precomputes the single-byte header encoding for every
// (tag number <= 14, length <= 4) application-class combination — the
// common case on the hot encode path (spec §4.1 "Performance requirements").
var smallHeaderTable [15][5]byte

func init() {
	for tagNum := 0; tagNum < 15; tagNum++ {
		for length := 0; length < 5; length++ {
			smallHeaderTable[tagNum][length] = byte((tagNum << 4) | length)
		}
	}
}

// EncodeHeader appends the tag header for a primitive value of the given
// tag number, class, and length to buf, returning the extended slice. It
// uses the precomputed single-byte table for the common case.
func EncodeHeader(buf []byte, tagNum uint32, class Class, length int) []byte {
	if tagNum < 15 && length < 5 && class == ClassApplication {
		return append(buf, smallHeaderTable[tagNum][length])
	}
	return encodeHeaderSlow(buf, tagNum, class, length, 0)
}

// EncodeContextHeader appends a context-class primitive tag header.
func EncodeContextHeader(buf []byte, tagNum uint32, length int) []byte {
	if tagNum < 15 && length < 5 {
		return append(buf, byte((tagNum<<4)|(1<<3)|uint32(length)))
	}
	return encodeHeaderSlow(buf, tagNum, ClassContext, length, 0)
}

func encodeHeaderSlow(buf []byte, tagNum uint32, class Class, length int, marker uint8) []byte {
	classBit := uint8(0)
	if class == ClassContext {
		classBit = 1
	}

	var lengthField uint8
	switch {
	case marker != 0:
		lengthField = marker
	case length < 5:
		lengthField = uint8(length)
	default:
		lengthField = 5
	}

	if tagNum < 15 {
		buf = append(buf, (uint8(tagNum)<<4)|(classBit<<3)|lengthField)
	} else {
		buf = append(buf, 0xF0|(classBit<<3)|lengthField)
		buf = append(buf, byte(tagNum))
	}

	if marker != 0 {
		return buf
	}

	if length >= 5 {
		switch {
		case length < 254:
			buf = append(buf, byte(length))
		case length < 65536:
			buf = append(buf, 254, byte(length>>8), byte(length))
		default:
			buf = append(buf, 255, byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
		}
	}
	return buf
}

// EncodeOpeningTag appends an opening tag for a constructed sequence.
func EncodeOpeningTag(buf []byte, tagNum uint32) []byte {
	return encodeHeaderSlow(buf, tagNum, ClassContext, 0, 6)
}

// EncodeClosingTag appends a closing tag matching an opening tag.
func EncodeClosingTag(buf []byte, tagNum uint32) []byte {
	return encodeHeaderSlow(buf, tagNum, ClassContext, 0, 7)
}

// DecodeHeader parses the tag header at the start of data. It never
// allocates and never reads past the declared length field.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < 1 {
		return Header{}, ErrTruncated
	}

	first := data[0]
	tagNum := uint32(first >> 4)
	class := Class((first >> 3) & 0x01)
	lengthField := first & 0x07
	headerLen := 1

	if tagNum == 0x0F {
		if len(data) < 2 {
			return Header{}, ErrTruncated
		}
		tagNum = uint32(data[1])
		headerLen = 2
	}

	if class == ClassContext && lengthField == 6 {
		return Header{Number: tagNum, Class: class, Kind: kindOpening, HeaderLen: headerLen}, nil
	}
	if class == ClassContext && lengthField == 7 {
		return Header{Number: tagNum, Class: class, Kind: kindClosing, HeaderLen: headerLen}, nil
	}

	length := int(lengthField)
	if lengthField == 5 {
		if len(data) < headerLen+1 {
			return Header{}, ErrTruncated
		}
		switch {
		case data[headerLen] < 254:
			length = int(data[headerLen])
			headerLen++
		case data[headerLen] == 254:
			if len(data) < headerLen+3 {
				return Header{}, ErrTruncated
			}
			length = int(data[headerLen+1])<<8 | int(data[headerLen+2])
			headerLen += 3
		default:
			if len(data) < headerLen+5 {
				return Header{}, ErrTruncated
			}
			length = int(data[headerLen+1])<<24 | int(data[headerLen+2])<<16 | int(data[headerLen+3])<<8 | int(data[headerLen+4])
			headerLen += 5
		}
	}

	if length > MaxLength {
		return Header{}, ErrInvalidLength
	}
	if len(data) < headerLen+length {
		return Header{}, ErrTruncated
	}

	return Header{Number: tagNum, Class: class, Length: length, Kind: kindPrimitive, HeaderLen: headerLen}, nil
}
