package main

import (
	"log"
	"time"

	"github.com/driftchat/drift/internal/matching"
	"github.com/driftchat/drift/internal/profile"
	"github.com/driftchat/drift/internal/protocol"
	"github.com/driftchat/drift/internal/ws"
)

// wsNotifier delivers hub events to clients as protocol messages over the
// WebSocket server. Send failures are logged and dropped; a connection that
// cannot be written to is torn down by the transport layer, which triggers
// the hub's disconnect cleanup on its own.
type wsNotifier struct {
	server *ws.Server
}

func (n *wsNotifier) send(connID, msgType string, payload interface{}) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.Printf("[notify] build %s for conn=%s: %v", msgType, connID, err)
		return
	}
	if err := n.server.SendMessage(connID, data); err != nil {
		log.Printf("[notify] send %s to conn=%s: %v", msgType, connID, err)
	}
}

func (n *wsNotifier) PartnerFound(connID string, roomID matching.RoomID, peer profile.Profile) {
	n.send(connID, protocol.TypePartnerFound, protocol.PartnerFoundMsg{
		RoomID: string(roomID),
		PeerProfile: protocol.Profile{
			Gender:  peer.Gender,
			Age:     peer.Age,
			Country: peer.Country,
		},
	})
}

func (n *wsNotifier) Message(connID string, text string, ts int64) {
	n.send(connID, protocol.TypeMessage, protocol.ServerChatMsg{
		From: "partner",
		Text: text,
		Ts:   ts,
	})
}

func (n *wsNotifier) Typing(connID string, isTyping bool) {
	n.send(connID, protocol.TypeTyping, protocol.ServerTypingMsg{IsTyping: isTyping})
}

func (n *wsNotifier) PartnerLeft(connID string, reason string) {
	n.send(connID, protocol.TypePartnerLeft, protocol.PartnerLeftMsg{Reason: reason})
}

func (n *wsNotifier) RoomClosed(connID string) {
	n.send(connID, protocol.TypeRoomClosed, protocol.RoomClosedMsg{})
}

func (n *wsNotifier) QueueStatus(connID string, size int) {
	n.send(connID, protocol.TypeQueueStatus, protocol.QueueStatusMsg{Size: size})
}

func (n *wsNotifier) Banned(connID string, reason string, until time.Time) {
	var untilUnix int64
	if !until.IsZero() {
		untilUnix = until.Unix()
	}
	n.send(connID, protocol.TypeBanned, protocol.BannedMsg{
		Reason: reason,
		Until:  untilUnix,
	})
}
