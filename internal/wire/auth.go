package wire

import (
	"github.com/go-faster/jx"

	"github.com/galadrinks/storefront/internal/domain/auth"
)

// Login is the body of POST /api/auth/login.
type Login struct {
	Email    string
	Password string
}

func (v Login) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("email")
	e.Str(v.Email)
	e.FieldStart("password")
	e.Str(v.Password)
	e.ObjEnd()
}

func (v *Login) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			v.Email, err = d.Str()
		case "password":
			v.Password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

// Session is the login response.
type Session auth.Session

func (v Session) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("access_token")
	e.Str(v.AccessToken)
	e.FieldStart("customer_id")
	e.Str(v.CustomerID)
	e.FieldStart("expires_at")
	encodeTime(e, v.ExpiresAt)
	e.ObjEnd()
}

func (v *Session) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "access_token":
			v.AccessToken, err = d.Str()
		case "customer_id":
			v.CustomerID, err = d.Str()
		case "expires_at":
			v.ExpiresAt, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// CustomerNumber is the body of POST /api/customer-email.
type CustomerNumber struct {
	CustomerNumber string
}

func (v CustomerNumber) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("customer_number")
	e.Str(v.CustomerNumber)
	e.ObjEnd()
}

func (v *CustomerNumber) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "customer_number" {
			return d.Skip()
		}
		var err error
		v.CustomerNumber, err = d.Str()
		return err
	})
}

// Email is the customer-email lookup response.
type Email struct {
	Email string
}

func (v Email) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("email")
	e.Str(v.Email)
	e.ObjEnd()
}

func (v *Email) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "email" {
			return d.Skip()
		}
		var err error
		v.Email, err = d.Str()
		return err
	})
}
