package tlv

import "fmt"

// Value is a decoded application-tagged primitive, tagged by kind so a
// single Go value can flow generically through the service layer (the
// object database, §1, treats properties as an opaque typed map — Value is
// that opaque type's wire-level counterpart).
type Value struct {
	Tag     ApplicationTag
	Null    bool
	Bool    bool
	Uint    uint64
	Int     int64
	Real    float32
	Double  float64
	Octet   []byte
	Str     string
	Bits    BitString
	Date    Date
	Time    Time
	ObjectID ObjectIdentifier
}

// EncodeApplication encodes v as an application-tagged primitive.
func EncodeApplication(v Value) []byte {
	switch v.Tag {
	case TagNull:
		return EncodeHeader(nil, uint32(TagNull), ClassApplication, 0)
	case TagBoolean:
		length := 0
		if v.Bool {
			length = 1
		}
		return EncodeHeader(nil, uint32(TagBoolean), ClassApplication, length)
	case TagUnsigned:
		data := EncodeUnsigned(v.Uint)
		return append(EncodeHeader(nil, uint32(TagUnsigned), ClassApplication, len(data)), data...)
	case TagSigned:
		data := EncodeSigned(v.Int)
		return append(EncodeHeader(nil, uint32(TagSigned), ClassApplication, len(data)), data...)
	case TagReal:
		data := EncodeReal(v.Real)
		return append(EncodeHeader(nil, uint32(TagReal), ClassApplication, len(data)), data...)
	case TagDouble:
		data := EncodeDouble(v.Double)
		return append(EncodeHeader(nil, uint32(TagDouble), ClassApplication, len(data)), data...)
	case TagOctetString:
		return append(EncodeHeader(nil, uint32(TagOctetString), ClassApplication, len(v.Octet)), v.Octet...)
	case TagCharacterString:
		data := EncodeCharacterString(v.Str)
		return append(EncodeHeader(nil, uint32(TagCharacterString), ClassApplication, len(data)), data...)
	case TagBitString:
		data := EncodeBitString(v.Bits)
		return append(EncodeHeader(nil, uint32(TagBitString), ClassApplication, len(data)), data...)
	case TagEnumerated:
		data := EncodeUnsigned(v.Uint)
		return append(EncodeHeader(nil, uint32(TagEnumerated), ClassApplication, len(data)), data...)
	case TagDate:
		data := EncodeDate(v.Date)
		return append(EncodeHeader(nil, uint32(TagDate), ClassApplication, len(data)), data...)
	case TagTime:
		data := EncodeTime(v.Time)
		return append(EncodeHeader(nil, uint32(TagTime), ClassApplication, len(data)), data...)
	case TagObjectID:
		data := EncodeObjectIdentifier(v.ObjectID)
		return append(EncodeHeader(nil, uint32(TagObjectID), ClassApplication, len(data)), data...)
	default:
		return nil
	}
}

// DecodeApplication decodes a single application-tagged primitive from the
// front of data, returning the value and the number of bytes consumed.
func DecodeApplication(data []byte) (Value, int, error) {
	// An application-tagged Boolean carries its value in the length bits
	// and has no content octets, so it bypasses DecodeHeader's body check.
	if len(data) > 0 && data[0]&0xF8 == byte(TagBoolean)<<4 {
		return Value{Tag: TagBoolean, Bool: data[0]&0x07 == 1}, 1, nil
	}
	h, err := DecodeHeader(data)
	if err != nil {
		return Value{}, 0, err
	}
	if h.Class != ClassApplication || h.Kind != kindPrimitive {
		return Value{}, 0, ErrInvalidTag
	}
	body := data[h.HeaderLen : h.HeaderLen+h.Length]
	consumed := h.HeaderLen + h.Length

	v := Value{Tag: ApplicationTag(h.Number)}
	switch v.Tag {
	case TagNull:
		v.Null = true
	case TagBoolean:
		v.Bool = h.Length == 1
	case TagUnsigned, TagEnumerated:
		v.Uint = DecodeUnsigned(body)
	case TagSigned:
		v.Int = DecodeSigned(body)
	case TagReal:
		v.Real, err = DecodeReal(body)
	case TagDouble:
		v.Double, err = DecodeDouble(body)
	case TagOctetString:
		v.Octet = append([]byte(nil), body...)
	case TagCharacterString:
		v.Str, err = DecodeCharacterString(body)
	case TagBitString:
		v.Bits, err = DecodeBitString(body)
	case TagDate:
		v.Date, err = DecodeDate(body)
	case TagTime:
		v.Time, err = DecodeTime(body)
	case TagObjectID:
		v.ObjectID, err = DecodeObjectIdentifier(body)
	default:
		return Value{}, 0, fmt.Errorf("%w: unsupported application tag %d", ErrInvalidTag, h.Number)
	}
	if err != nil {
		return Value{}, 0, err
	}
	return v, consumed, nil
}

// Reader walks a constructed (context-tagged) sequence, tracking nesting
// depth and a running decoded-item count against the resource caps from
// spec §4.1/§5.
type Reader struct {
	data  []byte
	pos   int
	depth int
	count int
}

// NewReader creates a Reader positioned at the start of data.
func NewReader(data []byte) *Reader { return &Reader{data: data} }

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// Remaining reports whether unread bytes remain.
func (r *Reader) Remaining() bool { return r.pos < len(r.data) }

// PeekHeader decodes the header at the current position without advancing.
func (r *Reader) PeekHeader() (Header, error) {
	if r.pos >= len(r.data) {
		return Header{}, ErrTruncated
	}
	return DecodeHeader(r.data[r.pos:])
}

// ExpectOpening consumes an opening tag with the given number, tracking
// nesting depth.
func (r *Reader) ExpectOpening(tagNum uint32) error {
	h, err := r.PeekHeader()
	if err != nil {
		return err
	}
	if !h.IsOpening() || h.Number != tagNum {
		return &UnexpectedTagError{Expected: uint8(tagNum), Actual: uint8(h.Number)}
	}
	r.depth++
	if r.depth > MaxNestingDepth {
		return ErrNestingTooDeep
	}
	r.pos += h.HeaderLen
	return nil
}

// ExpectClosing consumes a closing tag with the given number.
func (r *Reader) ExpectClosing(tagNum uint32) error {
	h, err := r.PeekHeader()
	if err != nil {
		return err
	}
	if !h.IsClosing() || h.Number != tagNum {
		return &UnexpectedTagError{Expected: uint8(tagNum), Actual: uint8(h.Number)}
	}
	r.depth--
	r.pos += h.HeaderLen
	return nil
}

// ReadContextValue reads one context-tagged primitive with the given tag
// number and returns its raw body (caller decodes per expected type).
func (r *Reader) ReadContextValue(tagNum uint32) ([]byte, error) {
	h, err := r.PeekHeader()
	if err != nil {
		return nil, err
	}
	if h.Class != ClassContext || h.Kind != kindPrimitive || h.Number != tagNum {
		return nil, &UnexpectedTagError{Expected: uint8(tagNum), Actual: uint8(h.Number)}
	}
	r.count++
	if r.count > MaxListCount {
		return nil, ErrCountExceeded
	}
	body := r.data[r.pos+h.HeaderLen : r.pos+h.HeaderLen+h.Length]
	r.pos += h.HeaderLen + h.Length
	return body, nil
}

// TryReadContextValue is ReadContextValue but returns ok=false instead of
// an error when the next header is not a matching context primitive,
// leaving the position unchanged — used for optional fields.
func (r *Reader) TryReadContextValue(tagNum uint32) (body []byte, ok bool, err error) {
	h, err := r.PeekHeader()
	if err != nil {
		return nil, false, nil
	}
	if h.Class != ClassContext || h.Kind != kindPrimitive || h.Number != tagNum {
		return nil, false, nil
	}
	r.count++
	if r.count > MaxListCount {
		return nil, false, ErrCountExceeded
	}
	body = r.data[r.pos+h.HeaderLen : r.pos+h.HeaderLen+h.Length]
	r.pos += h.HeaderLen + h.Length
	return body, true, nil
}

// ReadApplicationValue reads one application-tagged primitive (used inside
// an opened constructed field, e.g. a property value).
func (r *Reader) ReadApplicationValue() (Value, error) {
	v, n, err := DecodeApplication(r.data[r.pos:])
	if err != nil {
		return Value{}, err
	}
	r.count++
	if r.count > MaxListCount {
		return Value{}, ErrCountExceeded
	}
	r.pos += n
	return v, nil
}

// SkipValue skips one value at the current position — a primitive (any
// class) or an entire constructed sequence — honoring nesting and count
// limits. Used to discard fields the caller does not need to interpret.
func (r *Reader) SkipValue() error {
	h, err := r.PeekHeader()
	if err != nil {
		return err
	}
	if h.IsOpening() {
		if err := r.ExpectOpening(h.Number); err != nil {
			return err
		}
		for {
			if !r.Remaining() {
				return ErrTruncated
			}
			next, err := r.PeekHeader()
			if err != nil {
				return err
			}
			if next.IsClosing() && next.Number == h.Number {
				return r.ExpectClosing(h.Number)
			}
			if err := r.SkipValue(); err != nil {
				return err
			}
		}
	}
	if h.IsClosing() {
		return &UnexpectedTagError{Actual: uint8(h.Number)}
	}
	r.count++
	if r.count > MaxListCount {
		return ErrCountExceeded
	}
	r.pos += h.HeaderLen + h.Length
	return nil
}
