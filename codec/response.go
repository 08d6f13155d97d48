package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"wcf-rpc-sdk/message"
)

// Response field numbers.
const (
	rspFunc     protowire.Number = 1
	rspStatus   protowire.Number = 2
	rspStr      protowire.Number = 3
	rspWxMsg    protowire.Number = 4
	rspTypes    protowire.Number = 5
	rspContacts protowire.Number = 6
	rspDbs      protowire.Number = 7
	rspTables   protowire.Number = 8
	rspRows     protowire.Number = 9
	rspUI       protowire.Number = 10
	rspEmpty    protowire.Number = 11
)

// MarshalResponse encodes rsp.
func MarshalResponse(rsp *message.Response) ([]byte, error) {
	if rsp == nil {
		return nil, errors.New("codec: nil response")
	}
	b := optInt32(nil, rspFunc, int32(rsp.Func))

	switch m := rsp.Msg.(type) {
	case nil:
	case message.Status:
		b = appendVarint(b, rspStatus, uint64(int64(m)))
	case message.Str:
		b = appendString(b, rspStr, string(m))
	case message.Empty:
		b = appendBytes(b, rspEmpty, nil)
	case *message.WxMsg:
		b = appendBytes(b, rspWxMsg, marshalWxMsg(m))
	case *message.MsgTypes:
		var sub []byte
		for k, v := range m.Types {
			var entry []byte
			entry = optInt32(entry, 1, k)
			entry = optString(entry, 2, v)
			sub = appendBytes(sub, 1, entry)
		}
		b = appendBytes(b, rspTypes, sub)
	case *message.RpcContacts:
		var sub []byte
		for _, c := range m.Contacts {
			sub = appendBytes(sub, 1, marshalContact(c))
		}
		b = appendBytes(b, rspContacts, sub)
	case *message.DbNames:
		var sub []byte
		for _, name := range m.Names {
			sub = appendString(sub, 1, name)
		}
		b = appendBytes(b, rspDbs, sub)
	case *message.DbTables:
		var sub []byte
		for _, t := range m.Tables {
			var tb []byte
			tb = optString(tb, 1, t.Name)
			tb = optString(tb, 2, t.SQL)
			sub = appendBytes(sub, 1, tb)
		}
		b = appendBytes(b, rspTables, sub)
	case *message.DbRows:
		var sub []byte
		for _, row := range m.Rows {
			var rb []byte
			for _, fd := range row.Fields {
				var fb []byte
				fb = optInt32(fb, 1, fd.Type)
				fb = optString(fb, 2, fd.Column)
				fb = optBytes(fb, 3, fd.Content)
				rb = appendBytes(rb, 1, fb)
			}
			sub = appendBytes(sub, 1, rb)
		}
		b = appendBytes(b, rspRows, sub)
	case *message.UserInfo:
		var sub []byte
		sub = optString(sub, 1, m.Wxid)
		sub = optString(sub, 2, m.Name)
		sub = optString(sub, 3, m.Mobile)
		sub = optString(sub, 4, m.Home)
		b = appendBytes(b, rspUI, sub)
	default:
		return nil, fmt.Errorf("codec: unsupported response payload %T", m)
	}
	return b, nil
}

func marshalWxMsg(m *message.WxMsg) []byte {
	var b []byte
	b = optBool(b, 1, m.IsSelf)
	b = optBool(b, 2, m.IsGroup)
	b = optUint64(b, 3, m.ID)
	b = optUint64(b, 4, uint64(m.Type))
	b = optUint64(b, 5, uint64(m.Ts))
	b = optString(b, 6, m.RoomID)
	b = optString(b, 7, m.Content)
	b = optString(b, 8, m.Sender)
	b = optString(b, 9, m.Sign)
	b = optString(b, 10, m.Thumb)
	b = optString(b, 11, m.Extra)
	b = optString(b, 12, m.XML)
	return b
}

func marshalContact(c *message.RpcContact) []byte {
	var b []byte
	b = optString(b, 1, c.Wxid)
	b = optString(b, 2, c.Code)
	b = optString(b, 3, c.Remark)
	b = optString(b, 4, c.Name)
	b = optString(b, 5, c.Country)
	b = optString(b, 6, c.Province)
	b = optString(b, 7, c.City)
	b = optInt32(b, 8, c.Gender)
	return b
}

// UnmarshalResponse decodes a response or push frame body.
func UnmarshalResponse(data []byte) (*message.Response, error) {
	rsp := &message.Response{}
	err := walk(data, func(f field) error {
		var err error
		switch f.num {
		case rspFunc:
			rsp.Func = message.Function(f.i32())
		case rspStatus:
			rsp.Msg = message.Status(f.i32())
		case rspStr:
			if err = wantBytes(f, "str"); err == nil {
				rsp.Msg = message.Str(f.str())
			}
		case rspEmpty:
			rsp.Msg = message.Empty{}
		case rspWxMsg:
			var m *message.WxMsg
			m, err = unmarshalWxMsg(f)
			rsp.Msg = m
		case rspTypes:
			m := &message.MsgTypes{Types: make(map[int32]string)}
			err = decodeList(f, "types", func(entry field) error {
				var k int32
				var v string
				err := decodeSub(entry, "types entry", func(g field) {
					switch g.num {
					case 1:
						k = g.i32()
					case 2:
						v = g.str()
					}
				})
				m.Types[k] = v
				return err
			})
			rsp.Msg = m
		case rspContacts:
			m := &message.RpcContacts{}
			err = decodeList(f, "contacts", func(g field) error {
				c, err := unmarshalContact(g)
				if err == nil {
					m.Contacts = append(m.Contacts, c)
				}
				return err
			})
			rsp.Msg = m
		case rspDbs:
			m := &message.DbNames{}
			err = decodeList(f, "dbs", func(g field) error {
				m.Names = append(m.Names, g.str())
				return nil
			})
			rsp.Msg = m
		case rspTables:
			m := &message.DbTables{}
			err = decodeList(f, "tables", func(g field) error {
				t := &message.DbTable{}
				err := decodeSub(g, "table", func(h field) {
					switch h.num {
					case 1:
						t.Name = h.str()
					case 2:
						t.SQL = h.str()
					}
				})
				m.Tables = append(m.Tables, t)
				return err
			})
			rsp.Msg = m
		case rspRows:
			m := &message.DbRows{}
			err = decodeList(f, "rows", func(g field) error {
				row := &message.DbRow{}
				err := decodeList(g, "row", func(h field) error {
					fd := &message.DbField{}
					err := decodeSub(h, "field", func(x field) {
						switch x.num {
						case 1:
							fd.Type = x.i32()
						case 2:
							fd.Column = x.str()
						case 3:
							fd.Content = append([]byte(nil), x.b...)
						}
					})
					row.Fields = append(row.Fields, fd)
					return err
				})
				m.Rows = append(m.Rows, row)
				return err
			})
			rsp.Msg = m
		case rspUI:
			m := &message.UserInfo{}
			err = decodeSub(f, "ui", func(g field) {
				switch g.num {
				case 1:
					m.Wxid = g.str()
				case 2:
					m.Name = g.str()
				case 3:
					m.Mobile = g.str()
				case 4:
					m.Home = g.str()
				}
			})
			rsp.Msg = m
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return rsp, nil
}

func unmarshalWxMsg(f field) (*message.WxMsg, error) {
	m := &message.WxMsg{}
	err := decodeSub(f, "wxmsg", func(g field) {
		switch g.num {
		case 1:
			m.IsSelf = g.flag()
		case 2:
			m.IsGroup = g.flag()
		case 3:
			m.ID = g.u
		case 4:
			m.Type = g.u32()
		case 5:
			m.Ts = g.u32()
		case 6:
			m.RoomID = g.str()
		case 7:
			m.Content = g.str()
		case 8:
			m.Sender = g.str()
		case 9:
			m.Sign = g.str()
		case 10:
			m.Thumb = g.str()
		case 11:
			m.Extra = g.str()
		case 12:
			m.XML = g.str()
		}
	})
	return m, err
}

func unmarshalContact(f field) (*message.RpcContact, error) {
	c := &message.RpcContact{}
	err := decodeSub(f, "contact", func(g field) {
		switch g.num {
		case 1:
			c.Wxid = g.str()
		case 2:
			c.Code = g.str()
		case 3:
			c.Remark = g.str()
		case 4:
			c.Name = g.str()
		case 5:
			c.Country = g.str()
		case 6:
			c.Province = g.str()
		case 7:
			c.City = g.str()
		case 8:
			c.Gender = g.i32()
		}
	})
	return c, err
}

// decodeList walks the embedded message in f and hands every repeated
// element (field 1) to fn.
func decodeList(f field, what string, fn func(g field) error) error {
	if err := wantBytes(f, what); err != nil {
		return err
	}
	return walk(f.b, func(g field) error {
		if g.num != 1 {
			return nil
		}
		if err := wantBytes(g, what); err != nil {
			return err
		}
		return fn(g)
	})
}
