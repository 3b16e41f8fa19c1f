// Package registry tracks which participants occupy which rooms.
//
// A Registry is not safe for concurrent use. It is owned by the relay's
// dispatch goroutine, which serializes every mutation.
package registry

import "sort"

// Registry maps room ids to their member sets and participants back to
// their single room.
type Registry struct {
	rooms  map[string]map[string]struct{}
	roomOf map[string]string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]struct{}),
		roomOf: make(map[string]string),
	}
}

// Join moves participant into roomID, leaving any room it occupied before.
// It returns the room that was left, or "" if there was none or the
// participant was already in roomID.
func (r *Registry) Join(participant, roomID string) (previous string) {
	if current, ok := r.roomOf[participant]; ok {
		if current == roomID {
			return ""
		}
		r.Leave(participant, current)
		previous = current
	}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[participant] = struct{}{}
	r.roomOf[participant] = roomID
	return previous
}

// Leave removes participant from roomID. An emptied room is deleted.
// It reports whether participant was a member.
func (r *Registry) Leave(participant, roomID string) bool {
	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := members[participant]; !ok {
		return false
	}

	delete(members, participant)
	if r.roomOf[participant] == roomID {
		delete(r.roomOf, participant)
	}
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	return true
}

// MembersOf returns a sorted snapshot of roomID's members.
func (r *Registry) MembersOf(roomID string) []string {
	members := r.rooms[roomID]
	out := make([]string, 0, len(members))
	for p := range members {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RoomOf returns the room participant currently occupies.
func (r *Registry) RoomOf(participant string) (string, bool) {
	roomID, ok := r.roomOf[participant]
	return roomID, ok
}

// IsMember reports whether participant is in roomID.
func (r *Registry) IsMember(participant, roomID string) bool {
	_, ok := r.rooms[roomID][participant]
	return ok
}

// Size returns the number of members in roomID.
func (r *Registry) Size(roomID string) int {
	return len(r.rooms[roomID])
}

// Rooms returns a snapshot of every room and its size.
func (r *Registry) Rooms() map[string]int {
	out := make(map[string]int, len(r.rooms))
	for id, members := range r.rooms {
		out[id] = len(members)
	}
	return out
}
