package websocket

import (
	"fmt"
	"paint-server/core"
	"paint-server/session"
	"reflect"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type ackInvoker func(err error, payload map[string]any)

var localhostOrigin = regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)

// Hub relays live drawing between the members of a paint session and
// announces persisted layers. Each session id is a socket.io room.
type Hub struct {
	srv *socketio.Server

	mu     sync.RWMutex
	active map[string]int
}

// NewHub builds the socket.io server. Localhost origins are always allowed;
// extraOrigins adds exact origins such as "https://paint.example.com".
func NewHub(extraOrigins ...string) *Hub {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)

	origins := []any{localhostOrigin}
	for _, origin := range extraOrigins {
		origins = append(origins, origin)
	}
	opts.SetCors(&types.Cors{
		Origin:      origins,
		Credentials: true,
	})

	h := &Hub{
		srv:    socketio.NewServer(nil, opts),
		active: make(map[string]int),
	}
	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	h.srv.On("connection", h.onConnection)
	return h
}

// Server exposes the socket.io server for mounting on the router.
func (h *Hub) Server() *socketio.Server {
	return h.srv
}

func (h *Hub) Close() {
	h.srv.Close(nil)
}

// LayerAdded tells everyone in the layer's session that a new revision landed.
func (h *Hub) LayerAdded(layer *core.Layer) {
	err := h.srv.To(socketio.Room(layer.SessionID)).Emit("layer-added", map[string]any{
		"id":         layer.ID,
		"session_id": layer.SessionID,
		"layer_id":   layer.LayerID,
		"created_at": layer.CreatedAt.UnixMilli(),
	})
	if err != nil {
		logrus.WithError(err).WithField("session_id", layer.SessionID).Warn("Failed to announce layer")
	}
}

// ActiveSessions returns a snapshot of connected participants per session.
func (h *Hub) ActiveSessions() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessions := make(map[string]int, len(h.active))
	for k, v := range h.active {
		sessions[k] = v
	}
	return sessions
}

func (h *Hub) setParticipants(sessionID string, count int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if count <= 0 {
		delete(h.active, sessionID)
		return
	}
	h.active[sessionID] = count
}

func (h *Hub) onConnection(clients ...any) {
	socket, ok := clients[0].(*socketio.Socket)
	if !ok {
		return
	}

	me := socket.Id()
	myRoom := socketio.Room(me)
	_ = h.srv.To(myRoom).Emit("init-room")
	utils.Log().Printf("init room %v\n", myRoom)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("join-room", func(datas ...any) {
		h.joinRoom(socket, datas)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("server-broadcast", func(datas ...any) {
		handleBroadcast(socket, datas, false)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("server-volatile-broadcast", func(datas ...any) {
		handleBroadcast(socket, datas, true)
	})

	socket.On("disconnecting", func(datas ...any) {
		for _, currentRoom := range socket.Rooms().Keys() {
			if currentRoom == myRoom {
				continue
			}
			room := currentRoom
			h.srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, _ error) {
				utils.Log().Printf("disconnecting %v from session %v\n", me, room)

				others := make([]socketio.SocketId, 0, len(users))
				for _, user := range users {
					if user.Id() != me {
						others = append(others, user.Id())
					}
				}
				h.setParticipants(string(room), len(others))

				if len(others) > 0 {
					h.srv.In(room).Emit("room-user-change", others)
				}
			})
		}
	})

	socket.On("disconnect", func(datas ...any) {
		socket.RemoveAllListeners("")
	})
}

func (h *Hub) joinRoom(socket *socketio.Socket, datas []any) {
	ack, args := extractAck(datas)
	if len(args) == 0 {
		err := fmt.Errorf("session id is required")
		respondWithAck(socket, ack, "join-room-ack", errorPayload(err), err)
		return
	}

	sessionID, _ := args[0].(string)
	if err := session.ValidateSessionID(sessionID); err != nil {
		respondWithAck(socket, ack, "join-room-ack", errorPayload(err), err)
		return
	}

	me := socket.Id()
	room := socketio.Room(sessionID)
	socket.Join(room)
	utils.Log().Printf("Socket %v has joined session %v\n", me, room)

	h.srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, fetchErr error) {
		if fetchErr != nil {
			respondWithAck(socket, ack, "join-room-ack", errorPayload(fetchErr), fetchErr)
			return
		}

		h.setParticipants(sessionID, len(users))

		if len(users) <= 1 {
			_ = h.srv.To(socketio.Room(me)).Emit("first-in-room")
		} else {
			_ = socket.Broadcast().To(room).Emit("new-user", me)
		}

		members := make([]socketio.SocketId, 0, len(users))
		for _, user := range users {
			members = append(members, user.Id())
		}
		h.srv.In(room).Emit("room-user-change", members)

		respondWithAck(socket, ack, "join-room-ack", map[string]any{
			"status":     "ok",
			"user_count": len(users),
		}, nil)
	})
}

func handleBroadcast(socket *socketio.Socket, datas []any, volatile bool) {
	sessionID, payload, metadata, ack := parseBroadcastArgs(datas)
	if sessionID == "" {
		err := fmt.Errorf("missing session id")
		respondWithAck(socket, ack, "broadcast-ack", makeBroadcastAckPayload(err), err)
		return
	}

	var emitErr error
	if volatile {
		emitErr = socket.Volatile().Broadcast().To(socketio.Room(sessionID)).Emit("client-broadcast", payload, metadata)
	} else {
		emitErr = socket.Broadcast().To(socketio.Room(sessionID)).Emit("client-broadcast", payload, metadata)
	}

	respondWithAck(socket, ack, "broadcast-ack", makeBroadcastAckPayload(emitErr), emitErr)
}

func errorPayload(err error) map[string]any {
	return map[string]any{
		"status": "error",
		"error":  err.Error(),
	}
}

// extractAck splits a trailing client callback off the event arguments.
func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}

	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}

	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func {
		return nil
	}

	typ := value.Type()
	return func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			var arg any
			switch {
			case typ.NumIn() == 1 && err != nil:
				arg = err
			case typ.NumIn() == 1, i == 1:
				arg = payload
			case i == 0:
				arg = err
			}
			args[i] = coerceValue(arg, typ.In(i))
		}
		value.Call(args)
	}
}

func coerceValue(value any, targetType reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(targetType)
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(targetType):
		return rv
	case rv.Type().ConvertibleTo(targetType):
		return rv.Convert(targetType)
	case targetType.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(targetType)
	}
	return reflect.Zero(targetType)
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}

	if socket != nil && event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}

func parseBroadcastArgs(datas []any) (sessionID string, payload, metadata any, ack ackInvoker) {
	ack, args := extractAck(datas)
	if len(args) < 3 {
		return "", nil, nil, ack
	}

	sessionID, _ = args[0].(string)
	return sessionID, args[1], args[2], ack
}

func makeBroadcastAckPayload(ackErr error) map[string]any {
	if ackErr != nil {
		return errorPayload(ackErr)
	}
	return map[string]any{"status": "ok"}
}
