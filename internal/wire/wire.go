// Package wire holds the JSON representation of the storefront API, encoded
// and decoded with go-faster/jx. Handler and client share it so the two sides
// cannot drift.
package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Error is the body of every non-2xx response.
type Error struct {
	Code    int
	Message string
}

func (v Error) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(v.Code)
	e.FieldStart("message")
	e.Str(v.Message)
	e.ObjEnd()
}

func (v *Error) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			v.Code, err = d.Int()
		case "message":
			v.Message, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

// Encoder is a value with a JSON form.
type Encoder interface {
	Encode(e *jx.Encoder)
}

// Decoder is a value that can be read from JSON.
type Decoder interface {
	Decode(d *jx.Decoder) error
}

// Marshal encodes v into a fresh byte slice.
func Marshal(v Encoder) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	v.Encode(e)
	return append([]byte(nil), e.Bytes()...)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v Decoder) error {
	if len(data) == 0 {
		return errors.New("empty body")
	}
	return v.Decode(jx.DecodeBytes(data))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse time")
	}
	return t, nil
}

// decodeArr decodes a JSON array, treating null as empty.
func decodeArr(d *jx.Decoder, fn func(d *jx.Decoder) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Arr(fn)
}
