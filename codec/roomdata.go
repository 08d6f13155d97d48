package codec

import (
	"google.golang.org/protobuf/encoding/protowire"

	"wcf-rpc-sdk/message"
)

// UnmarshalRoomData decodes the RoomData blob of a chat room: a repeated
// member message (field 1) of wxid (1), display name (2) and state (3).
func UnmarshalRoomData(data []byte) ([]*message.RoomMember, error) {
	var members []*message.RoomMember
	err := walk(data, func(f field) error {
		if f.num != 1 {
			return nil
		}
		m := &message.RoomMember{}
		err := decodeSub(f, "RoomData.members", func(g field) {
			switch g.num {
			case 1:
				m.Wxid = g.str()
			case 2:
				m.DisplayName = g.str()
			case 3:
				m.State = g.i32()
			}
		})
		if err != nil {
			return err
		}
		members = append(members, m)
		return nil
	})
	return members, err
}

// MarshalRoomData is the inverse of UnmarshalRoomData.
func MarshalRoomData(members []*message.RoomMember) []byte {
	var b []byte
	for _, m := range members {
		var sub []byte
		sub = appendString(sub, 1, m.Wxid)
		sub = appendString(sub, 2, m.DisplayName)
		sub = appendVarint(sub, 3, uint64(int64(m.State)))
		b = appendBytes(b, protowire.Number(1), sub)
	}
	return b
}
