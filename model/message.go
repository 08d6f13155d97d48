// Package model holds the application-facing types built from raw frames:
// chat messages with reply helpers, friend requests, contacts and the
// logged-in account.
package model

import (
	"context"
	"encoding/xml"
	"errors"

	"wcf-rpc-sdk/message"
)

// ErrUnbound is returned by the Reply helpers of a message that has no client.
var ErrUnbound = errors.New("message is not bound to a client")

type MsgType uint32

const (
	MsgMoments           MsgType = 0
	MsgText              MsgType = 1
	MsgImage             MsgType = 3
	MsgVoice             MsgType = 34
	MsgFriendConfirm     MsgType = 37
	MsgPossibleFriend    MsgType = 40
	MsgBusinessCard      MsgType = 42
	MsgVideo             MsgType = 43
	MsgRockPaperScissors MsgType = 47
	MsgLocation          MsgType = 48
	MsgXML               MsgType = 49
	MsgXMLQuote          MsgType = 4901
	MsgXMLImage          MsgType = 4903
	MsgXMLFile           MsgType = 4906
	MsgXMLLink           MsgType = 4916
	MsgVoip              MsgType = 50
	MsgWechatInit        MsgType = 51
	MsgVoipNotify        MsgType = 52
	MsgVoipInvite        MsgType = 53
	MsgShortVideo        MsgType = 62
	MsgRedPacket         MsgType = 66
	MsgSysNotice         MsgType = 9999
	MsgSystem            MsgType = 10000
	MsgRevoke            MsgType = 10002
	MsgSogouEmoji        MsgType = 1048625
	MsgRedPacketCover    MsgType = 536936497
	MsgVideoChannelVideo MsgType = 754974769
)

// Replier sends content to a chat. The client implements it.
type Replier interface {
	SendText(ctx context.Context, receiver, content string, ats ...string) error
	SendImage(ctx context.Context, receiver, path string) error
	SendFile(ctx context.Context, receiver, path string) error
}

// FriendRequest is the verification data of a friend-confirm message.
type FriendRequest struct {
	V3    string
	V4    string
	Scene int32
}

// Message is a decoded chat message.
type Message struct {
	IsSelf  bool
	IsGroup bool
	ID      uint64
	Type    MsgType
	Ts      uint32
	RoomID  string // Empty unless IsGroup
	Content string
	Sender  string
	Sign    string
	Thumb   string
	Extra   string
	XML     string

	// Set only for MsgFriendConfirm messages whose content parsed.
	FriendRequest *FriendRequest

	replier Replier
}

// DecodeMessage builds a Message from a pushed frame. r may be nil, in which
// case the Reply helpers return ErrUnbound.
func DecodeMessage(raw *message.WxMsg, r Replier) *Message {
	m := &Message{
		IsSelf:  raw.IsSelf,
		IsGroup: raw.IsGroup,
		ID:      raw.ID,
		Type:    MsgType(raw.Type),
		Ts:      raw.Ts,
		RoomID:  raw.RoomID,
		Content: raw.Content,
		Sender:  raw.Sender,
		Sign:    raw.Sign,
		Thumb:   raw.Thumb,
		Extra:   raw.Extra,
		XML:     raw.XML,
		replier: r,
	}
	if !m.IsGroup {
		m.RoomID = ""
	}
	if m.Type == MsgFriendConfirm {
		m.FriendRequest = ParseFriendRequest(m.Content)
	}
	return m
}

type friendRequestXML struct {
	XMLName  xml.Name `xml:"msg"`
	Username string   `xml:"encryptusername,attr"`
	Ticket   string   `xml:"ticket,attr"`
	Scene    int32    `xml:"scene,attr"`
}

// ParseFriendRequest extracts v3, v4 and scene from friend-confirm content
// such as <msg encryptusername="v3_.." ticket="v4_.." scene="14" ...>.
// It returns nil if content is not such a document.
func ParseFriendRequest(content string) *FriendRequest {
	var doc friendRequestXML
	if err := xml.Unmarshal([]byte(content), &doc); err != nil {
		return nil
	}
	return &FriendRequest{V3: doc.Username, V4: doc.Ticket, Scene: doc.Scene}
}

// ReplyTarget is the chat a reply goes to: the room for group messages,
// otherwise the sender.
func (m *Message) ReplyTarget() string {
	if m.RoomID != "" {
		return m.RoomID
	}
	return m.Sender
}

func (m *Message) ReplyText(ctx context.Context, content string, ats ...string) error {
	if m.replier == nil {
		return ErrUnbound
	}
	return m.replier.SendText(ctx, m.ReplyTarget(), content, ats...)
}

func (m *Message) ReplyImage(ctx context.Context, path string) error {
	if m.replier == nil {
		return ErrUnbound
	}
	return m.replier.SendImage(ctx, m.ReplyTarget(), path)
}

func (m *Message) ReplyFile(ctx context.Context, path string) error {
	if m.replier == nil {
		return ErrUnbound
	}
	return m.replier.SendFile(ctx, m.ReplyTarget(), path)
}
