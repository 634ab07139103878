package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/jamstage/jamstage/internal/core"
	"github.com/jamstage/jamstage/internal/domain"
)

// Envelope is the inbound wire format, decoded once per frame. Only the
// fields the matched type needs are consulted; relay and chat keep the
// raw frame so unknown payload fields survive verbatim.
type Envelope struct {
	Type       string `json:"type"`
	Room       string `json:"room"`
	Nickname   string `json:"nickname"`
	IsHost     bool   `json:"isHost"`
	Instrument string `json:"instrument"`
	To         string `json:"to"`
}

// handleFrame parses and dispatches one inbound frame. Malformed input,
// unknown types and precondition failures are dropped without closing the
// connection: protocol violations never terminate a session.
func (ctl *Controller) handleFrame(sid core.SessionID, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("malformed envelope, dropped")
		return
	}

	switch env.Type {
	case "join":
		if env.Room == "" {
			log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("join without room, dropped")
			return
		}
		ctl.Orch.Join(sid, domain.RoomID(env.Room), env.Nickname, env.IsHost)
	case "start-performing":
		if env.Instrument == "" {
			log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("start-performing without instrument, dropped")
			return
		}
		ctl.Orch.StartPerforming(sid, env.Instrument, env.Nickname, env.IsHost)
	case "stop-performing":
		ctl.Orch.StopPerforming(sid)
	case "offer", "answer", "ice-candidate":
		if env.To == "" {
			log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("relay without target, dropped")
			return
		}
		ctl.Orch.Relay(sid, core.SessionID(env.To), data)
	case "chat":
		if !ctl.chat.Allow(sid) {
			log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("chat flood, dropped")
			return
		}
		ctl.Orch.Chat(sid, data)
	case "leave":
		ctl.Orch.Leave(sid)
	default:
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("unknown envelope type, dropped")
	}
}
