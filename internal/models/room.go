package models

import (
	"crypto/rand"
	"math/big"
)

const (
	RoomIDLength = 5
	roomIDChars  = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// RoomInfo is the public view of a room's occupancy
type RoomInfo struct {
	ID           string `json:"roomId"`
	Participants int    `json:"participants"`
}

// NewRoomID generates a short base36 room token. Collisions are possible
// and accepted; rooms are not reserved.
func NewRoomID() string {
	id := make([]byte, RoomIDLength)
	for i := range id {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomIDChars))))
		if err != nil {
			panic("room id: " + err.Error())
		}
		id[i] = roomIDChars[n.Int64()]
	}
	return string(id)
}
