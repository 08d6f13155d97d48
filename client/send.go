package client

import (
	"context"
	"strings"

	"wcf-rpc-sdk/message"
	"wcf-rpc-sdk/model"
)

var _ model.Replier = (*Client)(nil)

// AtAll mentions everyone in a chat room when passed to SendText.
const AtAll = "notify@all"

// Card is the content of a rich-text link card.
type Card struct {
	Name     string // Source name shown under the card
	Account  string // Official account id of the source
	Title    string
	Digest   string
	URL      string
	ThumbURL string
}

// SendText sends content to receiver, a wxid or a room id. In a room, ats
// lists the wxids to mention; they must also appear as "@name" in content.
func (c *Client) SendText(ctx context.Context, receiver, content string, ats ...string) error {
	return c.expect(ctx, message.FuncSendText, &message.TextMsg{
		Msg:      content,
		Receiver: receiver,
		Aters:    strings.Join(ats, ","),
	}, 0)
}

// SendImage sends the image at path. The path is read by the service, so it
// must be valid on the host running it.
func (c *Client) SendImage(ctx context.Context, receiver, path string) error {
	return c.expect(ctx, message.FuncSendImage, &message.PathMsg{Path: path, Receiver: receiver}, 0)
}

// SendFile sends the file at path, which must be valid on the service host.
func (c *Client) SendFile(ctx context.Context, receiver, path string) error {
	return c.expect(ctx, message.FuncSendFile, &message.PathMsg{Path: path, Receiver: receiver}, 0)
}

// SendXML sends raw message XML of the given message type.
func (c *Client) SendXML(ctx context.Context, receiver, content, path string, typ int32) error {
	return c.expect(ctx, message.FuncSendXML, &message.XmlMsg{
		Receiver: receiver,
		Content:  content,
		Path:     path,
		Type:     typ,
	}, 0)
}

func (c *Client) SendCard(ctx context.Context, receiver string, card Card) error {
	return c.expect(ctx, message.FuncSendRichText, &message.RichText{
		Name:     card.Name,
		Account:  card.Account,
		Title:    card.Title,
		Digest:   card.Digest,
		URL:      card.URL,
		ThumbURL: card.ThumbURL,
		Receiver: receiver,
	}, 1)
}

// AcceptNewFriend accepts the friend request carried by msg. It reports false
// without calling the service if msg is nil or carries no request, and false
// if the service answers with anything but success.
func (c *Client) AcceptNewFriend(ctx context.Context, msg *model.Message) (bool, error) {
	if msg == nil || msg.FriendRequest == nil {
		return false, nil
	}
	req := msg.FriendRequest
	st, err := c.status(ctx, message.FuncAcceptFriend, &message.Verification{
		V3:    req.V3,
		V4:    req.V4,
		Scene: req.Scene,
	})
	if err != nil {
		return false, err
	}
	return st == 1, nil
}
