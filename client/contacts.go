package client

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"wcf-rpc-sdk/message"
	"wcf-rpc-sdk/model"
)

// contactCache holds the account and contact list between refreshes. One
// mutex covers read-and-maybe-refresh so concurrent misses refresh once.
type contactCache struct {
	mu       sync.Mutex
	self     *model.SelfInfo
	contacts []*model.Contact
	byID     map[string]*model.Contact
}

// GetSelfInfo returns the logged-in account, fetching it on first use or when
// refresh is set.
func (c *Client) GetSelfInfo(ctx context.Context, refresh bool) (*model.SelfInfo, error) {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	if c.cache.self != nil && !refresh {
		return c.cache.self, nil
	}
	rsp, err := c.call(ctx, message.FuncGetUserInfo, nil)
	if err != nil {
		return nil, err
	}
	ui, err := rsp.UserInfo()
	if err != nil {
		return nil, err
	}
	c.cache.self = model.SelfInfoFromRPC(ui)
	return c.cache.self, nil
}

// GetContacts returns every contact, fetching the list on first use or when
// refresh is set.
func (c *Client) GetContacts(ctx context.Context, refresh bool) ([]*model.Contact, error) {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	if c.cache.byID == nil || refresh {
		if err := c.refreshContacts(ctx); err != nil {
			return nil, err
		}
	}
	return slices.Clone(c.cache.contacts), nil
}

func (c *Client) GetAllFriend(ctx context.Context) ([]*model.Contact, error) {
	return c.filterContacts(ctx, model.FlagFriend)
}

func (c *Client) GetAllChatRoom(ctx context.Context) ([]*model.Contact, error) {
	return c.filterContacts(ctx, model.FlagChatRoom)
}

// GetFriend looks up a friend by wxid, refreshing the list once on a miss.
func (c *Client) GetFriend(ctx context.Context, wxid string) (*model.Contact, error) {
	return c.lookupContact(ctx, wxid, model.FlagFriend)
}

// GetChatRoom looks up a chat room by id, refreshing the list once on a miss.
func (c *Client) GetChatRoom(ctx context.Context, roomID string) (*model.Contact, error) {
	return c.lookupContact(ctx, roomID, model.FlagChatRoom)
}

// GetOfficial looks up an official account by id, refreshing the list once
// on a miss.
func (c *Client) GetOfficial(ctx context.Context, id string) (*model.Contact, error) {
	return c.lookupContact(ctx, id, model.FlagOfficial)
}

func (c *Client) filterContacts(ctx context.Context, flag model.ContactFlags) ([]*model.Contact, error) {
	all, err := c.GetContacts(ctx, false)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(ct *model.Contact) bool { return !ct.Flags.Has(flag) }), nil
}

func (c *Client) lookupContact(ctx context.Context, id string, flag model.ContactFlags) (*model.Contact, error) {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	refreshed := false
	if c.cache.byID == nil {
		if err := c.refreshContacts(ctx); err != nil {
			return nil, err
		}
		refreshed = true
	}
	for {
		if ct, ok := c.cache.byID[id]; ok && ct.Flags.Has(flag) {
			return ct, nil
		}
		if refreshed {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := c.refreshContacts(ctx); err != nil {
			return nil, err
		}
		refreshed = true
	}
}

// refreshContacts reloads the contact list. Callers hold c.cache.mu.
func (c *Client) refreshContacts(ctx context.Context) error {
	rsp, err := c.call(ctx, message.FuncGetContacts, nil)
	if err != nil {
		return err
	}
	raw, err := rsp.Contacts()
	if err != nil {
		return err
	}

	contacts := make([]*model.Contact, 0, len(raw))
	byID := make(map[string]*model.Contact, len(raw))
	for _, rc := range raw {
		ct := model.ContactFromRPC(rc)
		contacts = append(contacts, ct)
		byID[ct.ID] = ct
	}
	c.cache.contacts = contacts
	c.cache.byID = byID

	c.logger.Debug("contacts refreshed", zap.Int("count", len(contacts)))
	return nil
}
