package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/jamstage/jamstage/internal/core"
	"github.com/jamstage/jamstage/internal/domain"
)

type welcomePayload struct {
	Type      string         `json:"type"`
	SessionID core.SessionID `json:"sessionId"`
}

type roomStatePayload struct {
	Type         string                 `json:"type"`
	Room         domain.RoomID          `json:"room"`
	Participants []core.ParticipantView `json:"participants"`
}

type participantJoinedPayload struct {
	Type        string               `json:"type"`
	Participant core.ParticipantView `json:"participant"`
}

type participantLeftPayload struct {
	Type      string         `json:"type"`
	SessionID core.SessionID `json:"sessionId"`
}

type performerUpdatedPayload struct {
	Type        string               `json:"type"`
	Participant core.ParticipantView `json:"participant"`
}

// Relay unicasts an offer/answer/ice-candidate envelope to its target,
// verbatim except for an added sender id. No state changes; an
// unresolvable target is a silent drop (expected during concurrent
// disconnects).
func (o *Orchestrator) Relay(from, to core.SessionID, raw core.Frame) {
	if _, ok := o.Registry.Lookup(to); !ok {
		log.Debug().Str("module", "app.dispatcher").Str("from", string(from)).Str("to", string(to)).Msg("relay target gone, dropped")
		return
	}
	frame, err := stampFields(raw, map[string]any{"from": from})
	if err != nil {
		log.Warn().Err(err).Str("module", "app.dispatcher").Str("from", string(from)).Msg("relay envelope not an object, dropped")
		return
	}
	o.sendFrame(to, frame)
}

// Chat broadcasts the envelope to the other members of the sender's room,
// stamped with the sender id and nickname. Ignored when unjoined.
func (o *Orchestrator) Chat(sid core.SessionID, raw core.Frame) {
	o.mu.Lock()
	room, ok := o.rooms.RoomOf(sid)
	if !ok {
		o.mu.Unlock()
		log.Debug().Str("module", "app.dispatcher").Str("sid", string(sid)).Msg("chat outside a room, ignored")
		return
	}
	nickname := placeholderNickname(sid)
	if p, ok := o.participants.Get(sid); ok {
		nickname = p.Nickname
	}
	peers := o.membersLocked(room, sid)
	o.mu.Unlock()

	frame, err := stampFields(raw, map[string]any{"from": sid, "nickname": nickname})
	if err != nil {
		log.Warn().Err(err).Str("module", "app.dispatcher").Str("sid", string(sid)).Msg("chat envelope not an object, dropped")
		return
	}
	for _, v := range peers {
		o.sendFrame(v.SessionID, frame)
	}
}

// sendTo marshals and delivers one envelope. Missing targets and
// unwritable transports are no-ops, never surfaced to the caller.
func (o *Orchestrator) sendTo(sid core.SessionID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.dispatcher").Msg("marshal envelope")
		return
	}
	o.sendFrame(sid, b)
}

// broadcast fans one envelope out to a member list. Each send is
// independent and non-blocking; a slow or dead peer never stalls the rest.
func (o *Orchestrator) broadcast(sids []core.SessionID, v any) {
	if len(sids) == 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.dispatcher").Msg("marshal envelope")
		return
	}
	for _, sid := range sids {
		o.sendFrame(sid, b)
	}
}

func (o *Orchestrator) sendFrame(sid core.SessionID, frame core.Frame) {
	conn, ok := o.Registry.Lookup(sid)
	if !ok {
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "app.dispatcher").Str("sid", string(sid)).Msg("frame dropped")
	}
}

// stampFields re-encodes a JSON object with extra top-level fields,
// preserving every original field untouched.
func stampFields(raw core.Frame, extra map[string]any) (core.Frame, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	for k, v := range extra {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		obj[k] = b
	}
	return json.Marshal(obj)
}
