// Package domain contains entities without logic, just meta-data.
package domain

import "errors"

const MaxNicknameLen = 36

var ErrNicknameTooLong = errors.New("nickname too long")

// Participant is the logical occupant of a room. Transport and lifecycle
// live elsewhere; this is pure state.
type Participant struct {
	Nickname     string
	Instrument   string
	IsPerforming bool
	IsHost       bool
}

// NewParticipant avoids raw struct literals in adapters and keeps
// construction obvious.
func NewParticipant(nickname string) *Participant {
	return &Participant{Nickname: nickname}
}

func (p *Participant) SetNickname(nickname string) error {
	if len(nickname) > MaxNicknameLen {
		return ErrNicknameTooLong
	}
	p.Nickname = nickname
	return nil
}
