package types

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeMsgpack implements msgpack.CustomEncoder so a Value's tagged
// union serializes as a compact [kind, payload] pair instead of
// reflecting over its (mostly unexported) fields.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeInt(int64(v.Kind)); err != nil {
		return err
	}
	switch v.Kind {
	case KindString:
		return enc.EncodeString(v.str)
	case KindStringVec:
		return enc.Encode(v.strVec)
	case KindInt:
		return enc.EncodeInt(v.i)
	case KindFloat:
		return enc.EncodeFloat64(v.f)
	case KindFloatVec:
		return enc.Encode(v.fVec)
	case KindBool:
		return enc.EncodeBool(v.b)
	case KindMemSize:
		return enc.EncodeInt(v.memBytes)
	case KindJobLen:
		return enc.EncodeInt(v.jobSecs)
	case KindFileType:
		return enc.EncodeString(string(v.fileType))
	case KindReadEnd:
		return enc.EncodeString(string(v.readEnd))
	default:
		return fmt.Errorf("config: encoding unknown value kind %d", v.Kind)
	}
}

// DecodeMsgpack implements msgpack.CustomDecoder, the inverse of
// EncodeMsgpack.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("config: expected 2-element encoded value, got %d", n)
	}
	kind, err := dec.DecodeInt()
	if err != nil {
		return err
	}
	v.Kind = ValueKind(kind)

	switch v.Kind {
	case KindString:
		v.str, err = dec.DecodeString()
	case KindStringVec:
		err = dec.Decode(&v.strVec)
	case KindInt:
		var i64 int64
		i64, err = dec.DecodeInt64()
		v.i = i64
	case KindFloat:
		v.f, err = dec.DecodeFloat64()
	case KindFloatVec:
		err = dec.Decode(&v.fVec)
	case KindBool:
		v.b, err = dec.DecodeBool()
	case KindMemSize:
		v.memBytes, err = dec.DecodeInt64()
	case KindJobLen:
		v.jobSecs, err = dec.DecodeInt64()
	case KindFileType:
		var s string
		s, err = dec.DecodeString()
		v.fileType = FileType(s)
	case KindReadEnd:
		var s string
		s, err = dec.DecodeString()
		v.readEnd = ReadEnd(s)
	default:
		return fmt.Errorf("config: decoding unknown value kind %d", v.Kind)
	}
	return err
}
