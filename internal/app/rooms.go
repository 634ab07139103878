package app

import (
	"github.com/jamstage/jamstage/internal/core"
	"github.com/jamstage/jamstage/internal/domain"
)

// RoomDirectory maps room ids to membership sets. Pure in-memory index,
// no persistence. A room key exists iff its member set is non-empty.
//
// Not self-synchronized: the Orchestrator serializes access together with
// the participant store so both stay consistent under one critical section.
type RoomDirectory struct {
	rooms    map[domain.RoomID]map[core.SessionID]struct{}
	byMember map[core.SessionID]domain.RoomID
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{
		rooms:    make(map[domain.RoomID]map[core.SessionID]struct{}),
		byMember: make(map[core.SessionID]domain.RoomID),
	}
}

// Join adds sid to the room's member set, creating the room lazily.
// Idempotent.
func (d *RoomDirectory) Join(room domain.RoomID, sid core.SessionID) {
	members, ok := d.rooms[room]
	if !ok {
		members = make(map[core.SessionID]struct{})
		d.rooms[room] = members
	}
	members[sid] = struct{}{}
	d.byMember[sid] = room
}

// Leave removes sid from the room's member set and deletes the room when
// the set empties. Unknown rooms and non-members are a no-op.
func (d *RoomDirectory) Leave(room domain.RoomID, sid core.SessionID) {
	members, ok := d.rooms[room]
	if !ok {
		return
	}
	delete(members, sid)
	if len(members) == 0 {
		delete(d.rooms, room)
	}
	if d.byMember[sid] == room {
		delete(d.byMember, sid)
	}
}

// Members returns the member set of a room, empty for unknown rooms,
// never an error. No ordering guarantee.
func (d *RoomDirectory) Members(room domain.RoomID) []core.SessionID {
	members := d.rooms[room]
	out := make([]core.SessionID, 0, len(members))
	for sid := range members {
		out = append(out, sid)
	}
	return out
}

// RoomOf resolves the room a session currently occupies, if any.
func (d *RoomDirectory) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	room, ok := d.byMember[sid]
	return room, ok
}

func (d *RoomDirectory) List() []core.RoomInfo {
	out := make([]core.RoomInfo, 0, len(d.rooms))
	for id, members := range d.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: len(members)})
	}
	return out
}
