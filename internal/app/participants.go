package app

import (
	"github.com/jamstage/jamstage/internal/core"
	"github.com/jamstage/jamstage/internal/domain"
)

// ParticipantUpdate is a partial write. Zero values leave the existing
// field untouched, except Performing: when set, false also clears the
// instrument (the stop-performing transition).
type ParticipantUpdate struct {
	Nickname   string
	Instrument string
	IsHost     bool // OR'd with the stored flag, never cleared here
	Performing *bool
}

// ParticipantStore holds per-session mutable attributes. It never rejects
// writes; malformed input is filtered before it gets here.
//
// Not self-synchronized: see RoomDirectory.
type ParticipantStore struct {
	byID map[core.SessionID]*domain.Participant
}

func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{byID: make(map[core.SessionID]*domain.Participant)}
}

// Upsert merges the update over the existing record, creating one with a
// placeholder nickname derived from the session id on first write.
func (s *ParticipantStore) Upsert(sid core.SessionID, u ParticipantUpdate) *domain.Participant {
	p, ok := s.byID[sid]
	if !ok {
		p = domain.NewParticipant(placeholderNickname(sid))
		s.byID[sid] = p
	}
	if u.Nickname != "" {
		if err := p.SetNickname(u.Nickname); err != nil {
			// Oversized nicknames are truncated rather than rejected.
			_ = p.SetNickname(u.Nickname[:domain.MaxNicknameLen])
		}
	}
	if u.IsHost {
		p.IsHost = true
	}
	if u.Performing != nil {
		p.IsPerforming = *u.Performing
		if *u.Performing {
			p.Instrument = u.Instrument
		} else {
			p.Instrument = ""
		}
	}
	return p
}

func (s *ParticipantStore) Get(sid core.SessionID) (*domain.Participant, bool) {
	p, ok := s.byID[sid]
	return p, ok
}

func (s *ParticipantStore) Remove(sid core.SessionID) {
	delete(s.byID, sid)
}

func placeholderNickname(sid core.SessionID) string {
	short := string(sid)
	if len(short) > 6 {
		short = short[:6]
	}
	return "guest-" + short
}
