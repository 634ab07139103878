package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jamstage/jamstage/internal/core"
	"github.com/jamstage/jamstage/internal/domain"
)

// Orchestrator applies protocol transitions to the room directory and
// participant store and fans the resulting envelopes out. Both structures
// are guarded by one mutex so a transition updates them atomically: a
// session is never observable as a room member without a participant
// record or vice versa.
//
// No method blocks on another connection; all cross-connection effects are
// fire-and-forget sends through the registry.
type Orchestrator struct {
	Registry *Registry

	mu           sync.Mutex
	rooms        *RoomDirectory
	participants *ParticipantStore
}

func NewOrchestrator(reg *Registry) *Orchestrator {
	return &Orchestrator{
		Registry:     reg,
		rooms:        NewRoomDirectory(),
		participants: NewParticipantStore(),
	}
}

// Connect registers a fresh transport and hands the client its session id.
func (o *Orchestrator) Connect(conn core.SignalConnection) core.SessionID {
	sid := o.Registry.Register(conn)
	o.sendTo(sid, welcomePayload{Type: "welcome", SessionID: sid})
	return sid
}

// Join puts the session into a room. A re-join overwrites: joining a
// different room first runs the full leave of the old one, including the
// participant-left broadcast there. The participant record survives the
// move, so isHost stays monotone for the session's lifetime.
func (o *Orchestrator) Join(sid core.SessionID, room domain.RoomID, nickname string, isHost bool) {
	var left leaveResult

	o.mu.Lock()
	if prev, ok := o.rooms.RoomOf(sid); ok && prev != room {
		left = o.leaveLocked(sid, prev)
	}
	o.rooms.Join(room, sid)
	p := o.participants.Upsert(sid, ParticipantUpdate{Nickname: nickname, IsHost: isHost})
	joined := core.Snapshot(sid, p)
	peers := o.membersLocked(room, sid)
	o.mu.Unlock()

	if left.happened {
		o.broadcast(left.remaining, participantLeftPayload{Type: "participant-left", SessionID: sid})
	}

	log.Info().Str("module", "app.orchestrator").
		Str("sid", string(sid)).Str("room", string(room)).
		Str("nickname", joined.Nickname).Bool("host", joined.IsHost).
		Msg("joined room")

	o.broadcast(sessionIDs(peers), participantJoinedPayload{Type: "participant-joined", Participant: joined})
	o.sendTo(sid, roomStatePayload{Type: "room-state", Room: room, Participants: peers})
}

// StartPerforming marks the session as performing on the given instrument
// and notifies the rest of the room. Ignored when the session is unjoined.
func (o *Orchestrator) StartPerforming(sid core.SessionID, instrument, nickname string, isHost bool) {
	performing := true
	o.updatePerformance(sid, ParticipantUpdate{
		Nickname:   nickname,
		Instrument: instrument,
		IsHost:     isHost,
		Performing: &performing,
	})
}

// StopPerforming clears the performing flag and instrument. The update is
// broadcast even when the session never started performing.
func (o *Orchestrator) StopPerforming(sid core.SessionID) {
	performing := false
	o.updatePerformance(sid, ParticipantUpdate{Performing: &performing})
}

func (o *Orchestrator) updatePerformance(sid core.SessionID, u ParticipantUpdate) {
	o.mu.Lock()
	room, ok := o.rooms.RoomOf(sid)
	if !ok {
		o.mu.Unlock()
		log.Debug().Str("module", "app.orchestrator").Str("sid", string(sid)).Msg("performance update outside a room, ignored")
		return
	}
	p := o.participants.Upsert(sid, u)
	view := core.Snapshot(sid, p)
	peers := o.membersLocked(room, sid)
	o.mu.Unlock()

	o.broadcast(sessionIDs(peers), performerUpdatedPayload{Type: "performer-updated", Participant: view})
}

// Leave takes the session out of its room and tells the remaining members.
// Performance fields are reset; nickname and host flag are kept for the
// lifetime of the connection.
func (o *Orchestrator) Leave(sid core.SessionID) {
	o.mu.Lock()
	room, ok := o.rooms.RoomOf(sid)
	if !ok {
		o.mu.Unlock()
		return
	}
	left := o.leaveLocked(sid, room)
	o.mu.Unlock()

	log.Info().Str("module", "app.orchestrator").Str("sid", string(sid)).Str("room", string(room)).Msg("left room")
	o.broadcast(left.remaining, participantLeftPayload{Type: "participant-left", SessionID: sid})
}

// Disconnect is the single cleanup path for transport close, graceful or
// abrupt. If the session was joined it behaves like an explicit leave,
// then the participant record and the connection itself are dropped.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	var left leaveResult

	o.mu.Lock()
	if room, ok := o.rooms.RoomOf(sid); ok {
		left = o.leaveLocked(sid, room)
	}
	o.participants.Remove(sid)
	o.mu.Unlock()

	if left.happened {
		o.broadcast(left.remaining, participantLeftPayload{Type: "participant-left", SessionID: sid})
	}
	o.Registry.Unregister(sid)
}

type leaveResult struct {
	happened  bool
	remaining []core.SessionID
}

// leaveLocked removes the session from a room and resets its performance
// state. Caller holds o.mu.
func (o *Orchestrator) leaveLocked(sid core.SessionID, room domain.RoomID) leaveResult {
	o.rooms.Leave(room, sid)
	if _, ok := o.participants.Get(sid); ok {
		performing := false
		o.participants.Upsert(sid, ParticipantUpdate{Performing: &performing})
	}
	return leaveResult{happened: true, remaining: o.rooms.Members(room)}
}

// membersLocked snapshots every member of a room except exclude. Caller
// holds o.mu. Every member has a record by invariant; one without is a
// bug we surface in logs rather than panic on.
func (o *Orchestrator) membersLocked(room domain.RoomID, exclude core.SessionID) []core.ParticipantView {
	members := o.rooms.Members(room)
	out := make([]core.ParticipantView, 0, len(members))
	for _, sid := range members {
		if sid == exclude {
			continue
		}
		p, ok := o.participants.Get(sid)
		if !ok {
			log.Error().Str("module", "app.orchestrator").Str("sid", string(sid)).Msg("room member without participant record")
			continue
		}
		out = append(out, core.Snapshot(sid, p))
	}
	return out
}

func sessionIDs(views []core.ParticipantView) []core.SessionID {
	out := make([]core.SessionID, 0, len(views))
	for _, v := range views {
		out = append(out, v.SessionID)
	}
	return out
}

// Rooms lists all live rooms, diagnostics only.
func (o *Orchestrator) Rooms() []core.RoomInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rooms.List()
}

// RoomSnapshot lists the participants of a room, diagnostics only.
func (o *Orchestrator) RoomSnapshot(room domain.RoomID) []core.ParticipantView {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.membersLocked(room, "")
}
