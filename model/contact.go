package model

import (
	"strings"

	"wcf-rpc-sdk/message"
)

type Gender int32

const (
	GenderUnknown Gender = 0
	GenderMale    Gender = 1
	GenderFemale  Gender = 2
)

// ContactFlags classifies a contact by its id.
type ContactFlags uint8

const (
	FlagFriend ContactFlags = 1 << iota
	FlagChatRoom
	FlagOfficial

	FlagNone ContactFlags = 0
)

func (f ContactFlags) Has(flag ContactFlags) bool { return f&flag != 0 }

// Classify derives the flags from a contact id alone:
// "wxid_" prefix is a friend, "@chatroom" suffix a chat room, "gh_" prefix
// an official account.
func Classify(id string) ContactFlags {
	var f ContactFlags
	if strings.HasPrefix(id, "wxid_") {
		f |= FlagFriend
	}
	if strings.HasSuffix(id, "@chatroom") {
		f |= FlagChatRoom
	}
	if strings.HasPrefix(id, "gh_") {
		f |= FlagOfficial
	}
	return f
}

type Contact struct {
	ID       string
	Code     string
	Remark   string
	Name     string
	Country  string
	Province string
	City     string
	Gender   Gender
	Flags    ContactFlags
}

func (c *Contact) IsFriend() bool   { return c.Flags.Has(FlagFriend) }
func (c *Contact) IsChatRoom() bool { return c.Flags.Has(FlagChatRoom) }
func (c *Contact) IsOfficial() bool { return c.Flags.Has(FlagOfficial) }

// ContactFromRPC converts a wire contact and classifies it.
func ContactFromRPC(rc *message.RpcContact) *Contact {
	return &Contact{
		ID:       rc.Wxid,
		Code:     rc.Code,
		Remark:   rc.Remark,
		Name:     rc.Name,
		Country:  rc.Country,
		Province: rc.Province,
		City:     rc.City,
		Gender:   Gender(rc.Gender),
		Flags:    Classify(rc.Wxid),
	}
}

// SelfInfo describes the logged-in account.
type SelfInfo struct {
	ID     string
	Name   string
	Mobile string
	Home   string

	// Where the desktop client stores received files: <Home>/<ID>/FileStorage.
	FileStoragePath string
}

func SelfInfoFromRPC(ui *message.UserInfo) *SelfInfo {
	home := strings.TrimRight(ui.Home, `/\`)
	return &SelfInfo{
		ID:              ui.Wxid,
		Name:            ui.Name,
		Mobile:          ui.Mobile,
		Home:            ui.Home,
		FileStoragePath: home + "/" + ui.Wxid + "/FileStorage",
	}
}
