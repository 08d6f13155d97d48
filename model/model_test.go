package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wcf-rpc-sdk/message"
)

type sent struct {
	kind, receiver, payload string
	ats                     []string
}

type fakeReplier struct{ calls []sent }

func (f *fakeReplier) SendText(_ context.Context, receiver, content string, ats ...string) error {
	f.calls = append(f.calls, sent{"text", receiver, content, ats})
	return nil
}

func (f *fakeReplier) SendImage(_ context.Context, receiver, path string) error {
	f.calls = append(f.calls, sent{"image", receiver, path, nil})
	return nil
}

func (f *fakeReplier) SendFile(_ context.Context, receiver, path string) error {
	f.calls = append(f.calls, sent{"file", receiver, path, nil})
	return nil
}

func TestDecodeMessageCopiesFields(t *testing.T) {
	raw := &message.WxMsg{
		IsSelf: true, IsGroup: true, ID: 42, Type: 1, Ts: 1700000000,
		RoomID: "123@chatroom", Content: "hello", Sender: "wxid_a",
		Sign: "s", Thumb: "t", Extra: "e", XML: "<x/>",
	}
	m := DecodeMessage(raw, nil)

	assert.True(t, m.IsSelf)
	assert.True(t, m.IsGroup)
	assert.Equal(t, uint64(42), m.ID)
	assert.Equal(t, MsgText, m.Type)
	assert.Equal(t, uint32(1700000000), m.Ts)
	assert.Equal(t, "123@chatroom", m.RoomID)
	assert.Equal(t, "hello", m.Content)
	assert.Equal(t, "wxid_a", m.Sender)
	assert.Equal(t, "<x/>", m.XML)
	assert.Nil(t, m.FriendRequest)
}

func TestDecodeMessageClearsRoomForDirect(t *testing.T) {
	m := DecodeMessage(&message.WxMsg{IsGroup: false, RoomID: "wxid_a", Sender: "wxid_a"}, nil)
	assert.Empty(t, m.RoomID)
	assert.Equal(t, "wxid_a", m.ReplyTarget())
}

func TestDecodeMessageKeepsUnknownType(t *testing.T) {
	m := DecodeMessage(&message.WxMsg{Type: 123456}, nil)
	assert.Equal(t, MsgType(123456), m.Type)
}

func TestFriendRequest(t *testing.T) {
	content := `<msg fromusername="wxid_new" encryptusername="v3_abc@stranger" ` +
		`fromnickname="Bob" content="hi" ticket="v4_def@stranger" scene="14" sex="1"/>`
	m := DecodeMessage(&message.WxMsg{Type: uint32(MsgFriendConfirm), Content: content}, nil)

	require.NotNil(t, m.FriendRequest)
	assert.Equal(t, FriendRequest{V3: "v3_abc@stranger", V4: "v4_def@stranger", Scene: 14}, *m.FriendRequest)
}

func TestFriendRequestMalformed(t *testing.T) {
	for _, content := range []string{"", "not xml", `<other encryptusername="v3"/>`, `<msg scene="x"/>`} {
		m := DecodeMessage(&message.WxMsg{Type: uint32(MsgFriendConfirm), Content: content}, nil)
		assert.Nil(t, m.FriendRequest, content)
	}
}

func TestFriendRequestOnlyForConfirm(t *testing.T) {
	content := `<msg encryptusername="v3" ticket="v4" scene="1"/>`
	m := DecodeMessage(&message.WxMsg{Type: uint32(MsgText), Content: content}, nil)
	assert.Nil(t, m.FriendRequest)
}

func TestReplyRouting(t *testing.T) {
	r := &fakeReplier{}
	group := DecodeMessage(&message.WxMsg{IsGroup: true, RoomID: "1@chatroom", Sender: "wxid_a"}, r)
	direct := DecodeMessage(&message.WxMsg{Sender: "wxid_b"}, r)

	ctx := context.Background()
	require.NoError(t, group.ReplyText(ctx, "hi", "wxid_a"))
	require.NoError(t, group.ReplyImage(ctx, "/tmp/a.png"))
	require.NoError(t, direct.ReplyFile(ctx, "/tmp/a.txt"))

	assert.Equal(t, []sent{
		{"text", "1@chatroom", "hi", []string{"wxid_a"}},
		{"image", "1@chatroom", "/tmp/a.png", nil},
		{"file", "wxid_b", "/tmp/a.txt", nil},
	}, r.calls)
}

func TestReplyUnbound(t *testing.T) {
	m := DecodeMessage(&message.WxMsg{Sender: "wxid_a"}, nil)
	ctx := context.Background()
	assert.ErrorIs(t, m.ReplyText(ctx, "hi"), ErrUnbound)
	assert.ErrorIs(t, m.ReplyImage(ctx, "p"), ErrUnbound)
	assert.ErrorIs(t, m.ReplyFile(ctx, "p"), ErrUnbound)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		id   string
		want ContactFlags
	}{
		{"wxid_abc", FlagFriend},
		{"12345@chatroom", FlagChatRoom},
		{"gh_news", FlagOfficial},
		{"filehelper", FlagNone},
		{"", FlagNone},
		{"wxid_x@chatroom", FlagFriend | FlagChatRoom},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.id), tt.id)
	}
}

func TestContactFromRPC(t *testing.T) {
	c := ContactFromRPC(&message.RpcContact{
		Wxid: "wxid_a", Code: "alice", Remark: "A", Name: "Alice",
		Country: "CN", Province: "GD", City: "SZ", Gender: 2,
	})
	assert.Equal(t, "wxid_a", c.ID)
	assert.Equal(t, GenderFemale, c.Gender)
	assert.True(t, c.IsFriend())
	assert.False(t, c.IsChatRoom())
	assert.False(t, c.IsOfficial())
}

func TestSelfInfoFileStoragePath(t *testing.T) {
	tests := []struct{ home, want string }{
		{`C:\Users\me\Documents\WeChat Files\`, `C:\Users\me\Documents\WeChat Files/wxid_me/FileStorage`},
		{"/home/me/WeChat Files/", "/home/me/WeChat Files/wxid_me/FileStorage"},
		{"/data", "/data/wxid_me/FileStorage"},
	}
	for _, tt := range tests {
		s := SelfInfoFromRPC(&message.UserInfo{Wxid: "wxid_me", Name: "Me", Home: tt.home})
		assert.Equal(t, tt.want, s.FileStoragePath)
		assert.Equal(t, tt.home, s.Home)
	}
}
