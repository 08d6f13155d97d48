package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"wcf-rpc-sdk/message"
)

// Request field numbers.
const (
	reqFunc  protowire.Number = 1
	reqEmpty protowire.Number = 2
	reqStr   protowire.Number = 3
	reqTxt   protowire.Number = 4
	reqFile  protowire.Number = 5
	reqQuery protowire.Number = 6
	reqV     protowire.Number = 7
	reqXML   protowire.Number = 9
	reqFlag  protowire.Number = 13
	reqRT    protowire.Number = 16
)

// MarshalRequest encodes req. A nil Msg encodes a request without payload.
func MarshalRequest(req *message.Request) ([]byte, error) {
	if req == nil {
		return nil, errors.New("codec: nil request")
	}
	b := optInt32(nil, reqFunc, int32(req.Func))

	switch m := req.Msg.(type) {
	case nil:
	case message.Empty:
		b = appendBytes(b, reqEmpty, nil)
	case message.Str:
		b = appendString(b, reqStr, string(m))
	case message.Flag:
		v := uint64(0)
		if m {
			v = 1
		}
		b = appendVarint(b, reqFlag, v)
	case *message.TextMsg:
		var sub []byte
		sub = optString(sub, 1, m.Msg)
		sub = optString(sub, 2, m.Receiver)
		sub = optString(sub, 3, m.Aters)
		b = appendBytes(b, reqTxt, sub)
	case *message.PathMsg:
		var sub []byte
		sub = optString(sub, 1, m.Path)
		sub = optString(sub, 2, m.Receiver)
		b = appendBytes(b, reqFile, sub)
	case *message.DbQuery:
		var sub []byte
		sub = optString(sub, 1, m.DB)
		sub = optString(sub, 2, m.SQL)
		b = appendBytes(b, reqQuery, sub)
	case *message.Verification:
		var sub []byte
		sub = optString(sub, 1, m.V3)
		sub = optString(sub, 2, m.V4)
		sub = optInt32(sub, 3, m.Scene)
		b = appendBytes(b, reqV, sub)
	case *message.XmlMsg:
		var sub []byte
		sub = optString(sub, 1, m.Receiver)
		sub = optString(sub, 2, m.Content)
		sub = optString(sub, 3, m.Path)
		sub = optInt32(sub, 4, m.Type)
		b = appendBytes(b, reqXML, sub)
	case *message.RichText:
		var sub []byte
		sub = optString(sub, 1, m.Name)
		sub = optString(sub, 2, m.Account)
		sub = optString(sub, 3, m.Title)
		sub = optString(sub, 4, m.Digest)
		sub = optString(sub, 5, m.URL)
		sub = optString(sub, 6, m.ThumbURL)
		sub = optString(sub, 7, m.Receiver)
		b = appendBytes(b, reqRT, sub)
	default:
		return nil, fmt.Errorf("codec: unsupported request payload %T", m)
	}
	return b, nil
}

// UnmarshalRequest decodes a request frame body.
func UnmarshalRequest(data []byte) (*message.Request, error) {
	req := &message.Request{}
	err := walk(data, func(f field) error {
		var err error
		switch f.num {
		case reqFunc:
			req.Func = message.Function(f.i32())
		case reqFlag:
			req.Msg = message.Flag(f.flag())
		case reqEmpty:
			req.Msg = message.Empty{}
		case reqStr:
			if err = wantBytes(f, "str"); err == nil {
				req.Msg = message.Str(f.str())
			}
		case reqTxt:
			m := &message.TextMsg{}
			err = decodeSub(f, "txt", func(g field) {
				switch g.num {
				case 1:
					m.Msg = g.str()
				case 2:
					m.Receiver = g.str()
				case 3:
					m.Aters = g.str()
				}
			})
			req.Msg = m
		case reqFile:
			m := &message.PathMsg{}
			err = decodeSub(f, "file", func(g field) {
				switch g.num {
				case 1:
					m.Path = g.str()
				case 2:
					m.Receiver = g.str()
				}
			})
			req.Msg = m
		case reqQuery:
			m := &message.DbQuery{}
			err = decodeSub(f, "query", func(g field) {
				switch g.num {
				case 1:
					m.DB = g.str()
				case 2:
					m.SQL = g.str()
				}
			})
			req.Msg = m
		case reqV:
			m := &message.Verification{}
			err = decodeSub(f, "v", func(g field) {
				switch g.num {
				case 1:
					m.V3 = g.str()
				case 2:
					m.V4 = g.str()
				case 3:
					m.Scene = g.i32()
				}
			})
			req.Msg = m
		case reqXML:
			m := &message.XmlMsg{}
			err = decodeSub(f, "xml", func(g field) {
				switch g.num {
				case 1:
					m.Receiver = g.str()
				case 2:
					m.Content = g.str()
				case 3:
					m.Path = g.str()
				case 4:
					m.Type = g.i32()
				}
			})
			req.Msg = m
		case reqRT:
			m := &message.RichText{}
			err = decodeSub(f, "rt", func(g field) {
				switch g.num {
				case 1:
					m.Name = g.str()
				case 2:
					m.Account = g.str()
				case 3:
					m.Title = g.str()
				case 4:
					m.Digest = g.str()
				case 5:
					m.URL = g.str()
				case 6:
					m.ThumbURL = g.str()
				case 7:
					m.Receiver = g.str()
				}
			})
			req.Msg = m
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// decodeSub walks the embedded message in f, handing each field to fn.
func decodeSub(f field, what string, fn func(g field)) error {
	if err := wantBytes(f, what); err != nil {
		return err
	}
	return walk(f.b, func(g field) error {
		fn(g)
		return nil
	})
}
