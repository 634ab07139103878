package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamstage/jamstage/internal/core"
	"github.com/jamstage/jamstage/internal/domain"
)

// fakeConn records every frame pushed at it. Set fail to simulate an
// unwritable transport.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("unwritable")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

// received decodes all recorded frames of the given type.
func (c *fakeConn) received(t *testing.T, typ string) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newTestOrchestrator() *Orchestrator {
	return NewOrchestrator(NewRegistry())
}

func connect(t *testing.T, o *Orchestrator) (core.SessionID, *fakeConn) {
	t.Helper()
	c := &fakeConn{}
	sid := o.Connect(c)
	welcomes := c.received(t, "welcome")
	require.Len(t, welcomes, 1)
	require.Equal(t, string(sid), welcomes[0]["sessionId"])
	return sid, c
}

func TestJoinFanout(t *testing.T) {
	o := newTestOrchestrator()
	aID, a := connect(t, o)
	bID, b := connect(t, o)

	o.Join(aID, "band1", "Alice", false)
	o.Join(bID, "band1", "Bob", false)

	joined := a.received(t, "participant-joined")
	require.Len(t, joined, 1, "each existing member gets exactly one participant-joined")
	p := joined[0]["participant"].(map[string]any)
	assert.Equal(t, "Bob", p["nickname"])
	assert.Equal(t, string(bID), p["sessionId"])

	states := b.received(t, "room-state")
	require.Len(t, states, 1)
	assert.Equal(t, "band1", states[0]["room"])
	participants := states[0]["participants"].([]any)
	require.Len(t, participants, 1, "room-state lists only the other members")
	other := participants[0].(map[string]any)
	assert.Equal(t, "Alice", other["nickname"])
	assert.Equal(t, false, other["isPerforming"])

	assert.Empty(t, b.received(t, "participant-joined"), "the arrival does not hear about itself")
}

func TestJoinFirstMemberGetsEmptyRoomState(t *testing.T) {
	o := newTestOrchestrator()
	aID, a := connect(t, o)

	o.Join(aID, "band1", "Alice", false)

	states := a.received(t, "room-state")
	require.Len(t, states, 1)
	assert.Empty(t, states[0]["participants"])
}

func TestRejoinDifferentRoomActsAsLeave(t *testing.T) {
	o := newTestOrchestrator()
	aID, _ := connect(t, o)
	bID, b := connect(t, o)

	o.Join(aID, "band1", "Alice", false)
	o.Join(bID, "band1", "Bob", false)
	o.Join(aID, "band2", "", false)

	lefts := b.received(t, "participant-left")
	require.Len(t, lefts, 1)
	assert.Equal(t, string(aID), lefts[0]["sessionId"])

	rooms := o.Rooms()
	require.Len(t, rooms, 2)
	counts := map[domain.RoomID]int{}
	for _, r := range rooms {
		counts[r.ID] = r.MemberCount
	}
	assert.Equal(t, 1, counts["band1"])
	assert.Equal(t, 1, counts["band2"])
}

func TestHostFlagSurvivesRejoin(t *testing.T) {
	o := newTestOrchestrator()
	aID, _ := connect(t, o)
	bID, b := connect(t, o)

	o.Join(aID, "band1", "Alice", true)
	o.Join(aID, "band2", "", false)
	o.Join(bID, "band2", "Bob", false)

	states := b.received(t, "room-state")
	require.Len(t, states, 1)
	participants := states[0]["participants"].([]any)
	require.Len(t, participants, 1)
	alice := participants[0].(map[string]any)
	assert.Equal(t, true, alice["isHost"], "isHost stays true across joins with the flag omitted")
}

func TestRelayVerbatimWithSender(t *testing.T) {
	o := newTestOrchestrator()
	aID, _ := connect(t, o)
	bID, b := connect(t, o)
	_, c := connect(t, o)

	raw := []byte(`{"type":"offer","to":"` + string(bID) + `","sdp":"v=0...","custom":{"x":1}}`)
	o.Relay(aID, bID, raw)

	offers := b.received(t, "offer")
	require.Len(t, offers, 1)
	assert.Equal(t, "v=0...", offers[0]["sdp"])
	assert.Equal(t, string(aID), offers[0]["from"])
	assert.Equal(t, map[string]any{"x": float64(1)}, offers[0]["custom"], "unknown payload fields pass through verbatim")

	assert.Equal(t, 1, c.frameCount(), "no third party receives the relay (welcome only)")
}

func TestRelayUnresolvableTargetIsSilent(t *testing.T) {
	o := newTestOrchestrator()
	aID, a := connect(t, o)

	o.Relay(aID, "gone", []byte(`{"type":"ice-candidate","to":"gone"}`))
	assert.Equal(t, 1, a.frameCount(), "sender gets no error reply")
}

func TestStartPerformingBroadcast(t *testing.T) {
	o := newTestOrchestrator()
	aID, a := connect(t, o)
	bID, b := connect(t, o)
	o.Join(aID, "band1", "Alice", false)
	o.Join(bID, "band1", "Bob", false)

	o.StartPerforming(aID, "guitar", "", false)

	updates := b.received(t, "performer-updated")
	require.Len(t, updates, 1)
	p := updates[0]["participant"].(map[string]any)
	assert.Equal(t, true, p["isPerforming"])
	assert.Equal(t, "guitar", p["instrument"])
	assert.Equal(t, "Alice", p["nickname"])

	assert.Empty(t, a.received(t, "performer-updated"), "the performer is excluded from the broadcast")
}

func TestStopPerformingWithoutStartStillBroadcasts(t *testing.T) {
	o := newTestOrchestrator()
	aID, _ := connect(t, o)
	bID, b := connect(t, o)
	o.Join(aID, "band1", "Alice", false)
	o.Join(bID, "band1", "Bob", false)

	o.StopPerforming(aID)

	updates := b.received(t, "performer-updated")
	require.Len(t, updates, 1)
	p := updates[0]["participant"].(map[string]any)
	assert.Equal(t, false, p["isPerforming"])
	_, present := p["instrument"]
	assert.False(t, present, "instrument is absent after stop-performing")
}

func TestPerformanceUpdateOutsideRoomIgnored(t *testing.T) {
	o := newTestOrchestrator()
	aID, a := connect(t, o)

	o.StartPerforming(aID, "bass", "", false)
	o.StopPerforming(aID)
	assert.Equal(t, 1, a.frameCount(), "welcome only, no broadcast and no error reply")
}

func TestChatBroadcast(t *testing.T) {
	o := newTestOrchestrator()
	aID, a := connect(t, o)
	bID, b := connect(t, o)
	cID, c := connect(t, o)
	o.Join(aID, "band1", "Alice", false)
	o.Join(bID, "band1", "Bob", false)
	o.Join(cID, "band1", "Cleo", false)

	before := a.frameCount()
	o.Chat(aID, []byte(`{"type":"chat","text":"hello"}`))

	for _, peer := range []*fakeConn{b, c} {
		chats := peer.received(t, "chat")
		require.Len(t, chats, 1)
		assert.Equal(t, "hello", chats[0]["text"])
		assert.Equal(t, string(aID), chats[0]["from"])
		assert.Equal(t, "Alice", chats[0]["nickname"])
	}
	assert.Equal(t, before, a.frameCount(), "the sender does not receive its own chat")
}

func TestChatOutsideRoomIgnored(t *testing.T) {
	o := newTestOrchestrator()
	aID, a := connect(t, o)

	o.Chat(aID, []byte(`{"type":"chat","text":"hello"}`))
	assert.Equal(t, 1, a.frameCount())
}

func TestLeaveNotifiesRemainingMembers(t *testing.T) {
	o := newTestOrchestrator()
	aID, _ := connect(t, o)
	bID, b := connect(t, o)
	o.Join(aID, "band1", "Alice", false)
	o.Join(bID, "band1", "Bob", false)

	o.Leave(aID)

	lefts := b.received(t, "participant-left")
	require.Len(t, lefts, 1)
	assert.Equal(t, string(aID), lefts[0]["sessionId"])

	rooms := o.Rooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, 1, rooms[0].MemberCount)

	o.Leave(aID) // second leave is a no-op
	assert.Len(t, b.received(t, "participant-left"), 1)
}

func TestDisconnectJoinedSession(t *testing.T) {
	o := newTestOrchestrator()
	aID, a := connect(t, o)
	bID, _ := connect(t, o)
	o.Join(aID, "band1", "Alice", false)
	o.Join(bID, "band1", "Bob", false)

	o.Disconnect(bID)

	lefts := a.received(t, "participant-left")
	require.Len(t, lefts, 1)
	assert.Equal(t, string(bID), lefts[0]["sessionId"])

	_, ok := o.Registry.Lookup(bID)
	assert.False(t, ok, "disconnect unregisters the connection")
	assert.Equal(t, 1, o.Registry.Count())
}

func TestDisconnectLastMemberDeletesRoom(t *testing.T) {
	o := newTestOrchestrator()
	aID, _ := connect(t, o)
	o.Join(aID, "band1", "Alice", false)

	o.Disconnect(aID)
	assert.Empty(t, o.Rooms())
}

func TestDisconnectUnjoinedHasNoBroadcast(t *testing.T) {
	o := newTestOrchestrator()
	aID, a := connect(t, o)
	bID, _ := connect(t, o)
	o.Join(aID, "band1", "Alice", false)

	o.Disconnect(bID)
	assert.Equal(t, 2, a.frameCount(), "welcome + room-state only")
}

func TestBroadcastSkipsUnwritablePeer(t *testing.T) {
	o := newTestOrchestrator()
	aID, _ := connect(t, o)
	bID, b := connect(t, o)
	cID, c := connect(t, o)
	o.Join(aID, "band1", "Alice", false)
	o.Join(bID, "band1", "Bob", false)
	o.Join(cID, "band1", "Cleo", false)

	b.mu.Lock()
	b.fail = true
	b.mu.Unlock()

	o.Chat(aID, []byte(`{"type":"chat","text":"hi"}`))

	assert.Len(t, c.received(t, "chat"), 1, "a dead peer never blocks delivery to others")
}

func TestRoomSnapshotDiagnostics(t *testing.T) {
	o := newTestOrchestrator()
	aID, _ := connect(t, o)
	bID, _ := connect(t, o)
	o.Join(aID, "band1", "Alice", true)
	o.Join(bID, "band1", "Bob", false)

	views := o.RoomSnapshot("band1")
	require.Len(t, views, 2)
	byNick := map[string]core.ParticipantView{}
	for _, v := range views {
		byNick[v.Nickname] = v
	}
	assert.True(t, byNick["Alice"].IsHost)
	assert.False(t, byNick["Bob"].IsHost)
	assert.Empty(t, o.RoomSnapshot("unknown"))
}
