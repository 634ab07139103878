package domain

// RoomID is application-supplied and not validated for format.
type RoomID string
