// Package message defines the request/response envelopes exchanged with the
// WCF automation service.
//
// Every frame is a discriminated union: Func names the operation and Msg holds
// exactly one payload variant. The variant types mirror the oneof members of
// the service's wcf.proto.
//
//   - Request:  Func + one of Empty, Str, Flag, *TextMsg, *PathMsg, *DbQuery,
//     *Verification, *XmlMsg, *RichText.
//   - Response: Func + one of Status, Str, Empty, *WxMsg, *MsgTypes,
//     *RpcContacts, *DbNames, *DbTables, *DbRows, *UserInfo.
//
// Push notifications arrive as a Response carrying *WxMsg.
package message

import (
	"errors"
	"fmt"
)

// ErrUnexpectedPayload is returned by the Response accessors when the frame
// carries no payload or a different variant than the one asked for.
var ErrUnexpectedPayload = errors.New("unexpected payload variant")

// Function is the operation code of a frame.
type Function int32

const (
	FuncReserved        Function = 0x00
	FuncIsLogin         Function = 0x01
	FuncGetSelfWxid     Function = 0x10
	FuncGetMsgTypes     Function = 0x11
	FuncGetContacts     Function = 0x12
	FuncGetDBNames      Function = 0x13
	FuncGetDBTables     Function = 0x14
	FuncGetUserInfo     Function = 0x15
	FuncSendText        Function = 0x20
	FuncSendImage       Function = 0x21
	FuncSendFile        Function = 0x22
	FuncSendXML         Function = 0x23
	FuncSendRichText    Function = 0x25
	FuncEnableRecvText  Function = 0x30
	FuncDisableRecvText Function = 0x40
	FuncExecDBQuery     Function = 0x50
	FuncAcceptFriend    Function = 0x51
)

var funcNames = map[Function]string{
	FuncReserved:        "Reserved",
	FuncIsLogin:         "IsLogin",
	FuncGetSelfWxid:     "GetSelfWxid",
	FuncGetMsgTypes:     "GetMsgTypes",
	FuncGetContacts:     "GetContacts",
	FuncGetDBNames:      "GetDBNames",
	FuncGetDBTables:     "GetDBTables",
	FuncGetUserInfo:     "GetUserInfo",
	FuncSendText:        "SendText",
	FuncSendImage:       "SendImage",
	FuncSendFile:        "SendFile",
	FuncSendXML:         "SendXML",
	FuncSendRichText:    "SendRichText",
	FuncEnableRecvText:  "EnableRecvText",
	FuncDisableRecvText: "DisableRecvText",
	FuncExecDBQuery:     "ExecDBQuery",
	FuncAcceptFriend:    "AcceptFriend",
}

func (f Function) String() string {
	if name, ok := funcNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Function(%#x)", int32(f))
}

// IsSend reports whether f pushes content to a chat.
func (f Function) IsSend() bool {
	return f >= FuncSendText && f <= FuncSendRichText
}

// RequestMsg is implemented by the request payload variants.
type RequestMsg interface{ isRequestMsg() }

// ResponseMsg is implemented by the response payload variants.
type ResponseMsg interface{ isResponseMsg() }

// Request is an RPC request frame.
type Request struct {
	Func Function
	Msg  RequestMsg
}

// Response is an RPC response or push frame.
type Response struct {
	Func Function
	Msg  ResponseMsg
}

// Empty is the payload of calls that take or return nothing.
type Empty struct{}

// Str is a plain string payload.
type Str string

// Flag is a boolean request payload.
type Flag bool

// Status is the integer result code of most calls.
type Status int32

type TextMsg struct {
	Msg      string
	Receiver string
	Aters    string // Comma separated wxids, "notify@all" for everyone
}

type PathMsg struct {
	Path     string
	Receiver string
}

type DbQuery struct {
	DB  string
	SQL string
}

type Verification struct {
	V3    string
	V4    string
	Scene int32
}

type XmlMsg struct {
	Receiver string
	Content  string
	Path     string
	Type     int32
}

type RichText struct {
	Name     string
	Account  string
	Title    string
	Digest   string
	URL      string
	ThumbURL string
	Receiver string
}

// WxMsg is a pushed chat message.
type WxMsg struct {
	IsSelf  bool
	IsGroup bool
	ID      uint64
	Type    uint32
	Ts      uint32
	RoomID  string
	Content string
	Sender  string
	Sign    string
	Thumb   string
	Extra   string
	XML     string
}

type MsgTypes struct {
	Types map[int32]string
}

type RpcContact struct {
	Wxid     string
	Code     string
	Remark   string
	Name     string
	Country  string
	Province string
	City     string
	Gender   int32
}

type RpcContacts struct {
	Contacts []*RpcContact
}

type DbNames struct {
	Names []string
}

type DbTable struct {
	Name string
	SQL  string
}

type DbTables struct {
	Tables []*DbTable
}

type DbField struct {
	Type    int32
	Column  string
	Content []byte
}

type DbRow struct {
	Fields []*DbField
}

type DbRows struct {
	Rows []*DbRow
}

type UserInfo struct {
	Wxid   string
	Name   string
	Mobile string
	Home   string
}

func (Empty) isRequestMsg()         {}
func (Str) isRequestMsg()           {}
func (Flag) isRequestMsg()          {}
func (*TextMsg) isRequestMsg()      {}
func (*PathMsg) isRequestMsg()      {}
func (*DbQuery) isRequestMsg()      {}
func (*Verification) isRequestMsg() {}
func (*XmlMsg) isRequestMsg()       {}
func (*RichText) isRequestMsg()     {}

func (Empty) isResponseMsg()        {}
func (Str) isResponseMsg()          {}
func (Status) isResponseMsg()       {}
func (*WxMsg) isResponseMsg()       {}
func (*MsgTypes) isResponseMsg()    {}
func (*RpcContacts) isResponseMsg() {}
func (*DbNames) isResponseMsg()     {}
func (*DbTables) isResponseMsg()    {}
func (*DbRows) isResponseMsg()      {}
func (*UserInfo) isResponseMsg()    {}

func unexpected(want string, got ResponseMsg) error {
	if got == nil {
		return fmt.Errorf("%w: want %s, got none", ErrUnexpectedPayload, want)
	}
	return fmt.Errorf("%w: want %s, got %T", ErrUnexpectedPayload, want, got)
}

// Status returns the status variant.
func (r *Response) Status() (int32, error) {
	if v, ok := r.Msg.(Status); ok {
		return int32(v), nil
	}
	return 0, unexpected("status", r.Msg)
}

// Str returns the string variant.
func (r *Response) Str() (string, error) {
	if v, ok := r.Msg.(Str); ok {
		return string(v), nil
	}
	return "", unexpected("str", r.Msg)
}

// WxMsg returns the pushed message variant.
func (r *Response) WxMsg() (*WxMsg, error) {
	if v, ok := r.Msg.(*WxMsg); ok && v != nil {
		return v, nil
	}
	return nil, unexpected("wxmsg", r.Msg)
}

// MsgTypes returns the message type table.
func (r *Response) MsgTypes() (map[int32]string, error) {
	if v, ok := r.Msg.(*MsgTypes); ok && v != nil {
		return v.Types, nil
	}
	return nil, unexpected("types", r.Msg)
}

// Contacts returns the contact list variant.
func (r *Response) Contacts() ([]*RpcContact, error) {
	if v, ok := r.Msg.(*RpcContacts); ok && v != nil {
		return v.Contacts, nil
	}
	return nil, unexpected("contacts", r.Msg)
}

// DbNames returns the database names variant.
func (r *Response) DbNames() ([]string, error) {
	if v, ok := r.Msg.(*DbNames); ok && v != nil {
		return v.Names, nil
	}
	return nil, unexpected("dbs", r.Msg)
}

// DbTables returns the database tables variant.
func (r *Response) DbTables() ([]*DbTable, error) {
	if v, ok := r.Msg.(*DbTables); ok && v != nil {
		return v.Tables, nil
	}
	return nil, unexpected("tables", r.Msg)
}

// DbRows returns the query result variant.
func (r *Response) DbRows() ([]*DbRow, error) {
	if v, ok := r.Msg.(*DbRows); ok && v != nil {
		return v.Rows, nil
	}
	return nil, unexpected("rows", r.Msg)
}

// UserInfo returns the self information variant.
func (r *Response) UserInfo() (*UserInfo, error) {
	if v, ok := r.Msg.(*UserInfo); ok && v != nil {
		return v, nil
	}
	return nil, unexpected("ui", r.Msg)
}

// RoomMember is one entry of a chat room's member list, as stored in the
// RoomData column of MicroMsg.db's ChatRoom table.
type RoomMember struct {
	Wxid        string
	DisplayName string // Group nickname; empty when unset
	State       int32
}
