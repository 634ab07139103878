package core

import "github.com/jamstage/jamstage/internal/domain"

// Frame is a raw wire payload, one signaling envelope per frame.
type Frame []byte

// SessionID is the server-issued opaque identifier for one transport
// session. Generated at registration, unique for the process lifetime.
type SessionID string

// SignalConnection abstracts the transport endpoint of one client.
// Owned by the adapter; the adapter must Close() it. TrySend never
// blocks: a full outbound queue or a closed connection drops the frame.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// ParticipantView is a read-only snapshot for wire envelopes and APIs
// (no transport fields).
type ParticipantView struct {
	SessionID    SessionID `json:"sessionId"`
	Nickname     string    `json:"nickname"`
	Instrument   string    `json:"instrument,omitempty"`
	IsPerforming bool      `json:"isPerforming"`
	IsHost       bool      `json:"isHost"`
}

// Snapshot materializes a view of a participant record.
func Snapshot(sid SessionID, p *domain.Participant) ParticipantView {
	return ParticipantView{
		SessionID:    sid,
		Nickname:     p.Nickname,
		Instrument:   p.Instrument,
		IsPerforming: p.IsPerforming,
		IsHost:       p.IsHost,
	}
}

// RoomInfo is the diagnostics view of a room.
type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"memberCount"`
}
