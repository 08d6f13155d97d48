package client

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wcf-rpc-sdk/codec"
	"wcf-rpc-sdk/message"
)

// IsLogin reports whether an account is logged in on the service.
func (c *Client) IsLogin(ctx context.Context) (bool, error) {
	st, err := c.status(ctx, message.FuncIsLogin, nil)
	if err != nil {
		return false, err
	}
	return st == 1, nil
}

func (c *Client) GetSelfWxid(ctx context.Context) (string, error) {
	rsp, err := c.call(ctx, message.FuncGetSelfWxid, nil)
	if err != nil {
		return "", err
	}
	return rsp.Str()
}

// GetMsgTypes returns the message type names known to the service.
func (c *Client) GetMsgTypes(ctx context.Context) (map[int32]string, error) {
	rsp, err := c.call(ctx, message.FuncGetMsgTypes, nil)
	if err != nil {
		return nil, err
	}
	return rsp.MsgTypes()
}

func (c *Client) GetDBNames(ctx context.Context) ([]string, error) {
	rsp, err := c.call(ctx, message.FuncGetDBNames, nil)
	if err != nil {
		return nil, err
	}
	return rsp.DbNames()
}

func (c *Client) GetDBTables(ctx context.Context, db string) ([]*message.DbTable, error) {
	rsp, err := c.call(ctx, message.FuncGetDBTables, message.Str(db))
	if err != nil {
		return nil, err
	}
	return rsp.DbTables()
}

// ExecDBQuery runs sql against one of the client's databases.
func (c *Client) ExecDBQuery(ctx context.Context, db, sql string) ([]*message.DbRow, error) {
	rsp, err := c.call(ctx, message.FuncExecDBQuery, &message.DbQuery{DB: db, SQL: sql})
	if err != nil {
		return nil, err
	}
	return rsp.DbRows()
}

// GetRoomMembers lists the members of a chat room from the local database.
// It returns ErrNotFound if the room has no stored member data.
func (c *Client) GetRoomMembers(ctx context.Context, roomID string) ([]*message.RoomMember, error) {
	sql := "SELECT RoomData FROM ChatRoom WHERE ChatRoomName = '" + strings.ReplaceAll(roomID, "'", "''") + "';"
	rows, err := c.ExecDBQuery(ctx, "MicroMsg.db", sql)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0].Fields) == 0 {
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, roomID)
	}

	members, err := codec.UnmarshalRoomData(rows[0].Fields[0].Content)
	if err != nil {
		return nil, fmt.Errorf("client: room %s: %w", roomID, err)
	}
	c.logger.Debug("room members loaded", zap.String("room", roomID), zap.Int("count", len(members)))
	return members, nil
}
