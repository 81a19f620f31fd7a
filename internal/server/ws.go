package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sketchduel/sketchduel-backend/internal"
	"github.com/sketchduel/sketchduel-backend/internal/backend"
	"github.com/sketchduel/sketchduel-backend/internal/relay"
	"github.com/sketchduel/sketchduel-backend/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient pairs one socket with one session. Gorilla connections do
// not allow concurrent writers, so every send goes through writeMu.
type wsClient struct {
	conn    *websocket.Conn
	sess    *session.Session
	writeMu sync.Mutex
}

func (c *wsClient) send(msgType string, data any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	msg := internal.Message[any]{Type: msgType, Data: data}
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("[send] write to %s failed: %v", c.sess.PlayerID(), err)
	}
}

func (c *wsClient) sendError(err error) {
	c.send("error", err.Error())
}

type pickTeamPayload struct {
	Team int `json:"team"`
}

type chatPayload struct {
	Text string `json:"text"`
}

type tagTeamPayload struct {
	To string `json:"to"`
}

// HandleWebSocket runs one client connection end to end: upgrade,
// create-or-join, then pump inbound commands and outbound room
// notifications until the socket drops.
//
// Join:   GET /ws/{code}?name=Ada
// Create: GET /ws/new?name=Ada&timer=60&max_rounds=6&tag_team=1&difficulty=medium
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HandleWebSocket] upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		sess: session.New(s.svc, s.ctrl),
	}

	code := mux.Vars(r)["code"]
	name := r.URL.Query().Get("name")

	if code == "new" {
		err = client.sess.CreateRoom(r.Context(), name, settingsFromQuery(r))
	} else {
		err = client.sess.JoinRoom(r.Context(), code, name)
	}
	if err != nil {
		client.sendError(err)
		conn.Close()
		return
	}

	log.Printf("[HandleWebSocket] player %s entered room %s", client.sess.PlayerID(), client.sess.RoomCode())

	client.send("welcome", map[string]string{
		"player_id": client.sess.PlayerID(),
		"room_code": client.sess.RoomCode(),
	})
	snap, err := s.svc.Snapshot(r.Context(), client.sess.RoomCode())
	if err == nil {
		client.send("snapshot", snap)
	}

	// Second subscription: the session's own feeds its store, this one
	// feeds the socket.
	sub := s.svc.Subscribe(client.sess.RoomCode())
	go client.forwardNotifications(sub)

	client.readLoop(r, sub)
}

func settingsFromQuery(r *http.Request) internal.RoomSettings {
	settings := internal.DefaultSettings()
	q := r.URL.Query()

	if raw := q.Get("timer"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			settings.TimerSeconds = v
		}
	}
	if raw := q.Get("max_rounds"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			settings.MaxRounds = v
		}
	}
	if raw := q.Get("tag_team"); raw != "" {
		settings.AllowTagTeam = raw == "1" || raw == "true"
	}
	if raw := q.Get("difficulty"); raw != "" {
		settings.Difficulty = internal.WordDifficulty(raw)
	}
	return settings
}

// forwardNotifications relays room events to the socket. Word
// assignments are targeted: anyone but the named drawer gets a
// redacted marker instead of the word.
func (c *wsClient) forwardNotifications(sub *backend.Subscription) {
	for n := range sub.C {
		if n.Kind == backend.NoteWordAssigned && n.TargetID != c.sess.PlayerID() {
			c.send("word_hidden", map[string]string{"drawer_id": n.TargetID})
			continue
		}
		c.send(string(n.Kind), n)
	}
}

func (c *wsClient) readLoop(r *http.Request, sub *backend.Subscription) {
	defer func() {
		sub.Close()
		c.conn.Close()
		if err := c.sess.LeaveRoom(r.Context()); err != nil {
			log.Printf("[readLoop] leave after disconnect: %v", err)
		}
	}()

	for {
		var msg internal.Message[json.RawMessage]
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[readLoop] read error for %s: %v", c.sess.PlayerID(), err)
			}
			return
		}

		if err := c.dispatch(r, msg); err != nil {
			c.sendError(err)
		}
	}
}

func (c *wsClient) dispatch(r *http.Request, msg internal.Message[json.RawMessage]) error {
	ctx := r.Context()

	switch msg.Type {
	case "toggle_ready":
		return c.sess.ToggleReady(ctx)

	case "pick_team":
		var p pickTeamPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		return c.sess.PickTeam(ctx, p.Team)

	case "start_game":
		return c.sess.StartGame(ctx)

	case "chat_message":
		var p chatPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		return c.sess.SendChat(ctx, p.Text)

	case "drawing_event":
		var ev relay.StrokeEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return err
		}
		return c.sess.SendDrawing(ctx, ev)

	case "tag_team":
		var p tagTeamPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		return c.sess.TagTeam(ctx, p.To)

	case "end_game":
		return c.sess.EndGame(ctx)

	case "new_game":
		return c.sess.NewGame(ctx)

	default:
		log.Printf("[dispatch] unknown message type: %s", msg.Type)
		return nil
	}
}
