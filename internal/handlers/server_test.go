package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/auth"
	"github.com/jason-s-yu/wordparty/internal/game"
	"github.com/jason-s-yu/wordparty/internal/listener"
	"github.com/jason-s-yu/wordparty/internal/models"
	"github.com/jason-s-yu/wordparty/internal/notifier"
	"github.com/jason-s-yu/wordparty/internal/ratelimit"
	"github.com/jason-s-yu/wordparty/internal/registry"
	"github.com/jason-s-yu/wordparty/internal/variant"
	"github.com/jason-s-yu/wordparty/internal/warden"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

type fixture struct {
	srv      *Server
	ts       *httptest.Server
	registry *registry.Registry
	signer   *auth.Signer
}

func setup(t *testing.T, maxSlots int, limiter ratelimit.Limiter) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	bank, err := variant.DefaultBank()
	require.NoError(t, err)
	signer, err := auth.NewSigner(time.Hour)
	require.NoError(t, err)

	hub := notifier.NewHub(logger)
	reg := registry.New(warden.New(), bank, game.Options{
		MaxSlots: maxSlots,
		Timing: game.Timing{
			RoundStartDelay:   time.Minute,
			TurnAnnounceDelay: time.Minute,
			WordSelectWindow:  time.Minute,
			ScorePause:        time.Minute,
		},
		Notifier: hub,
		Logger:   logger,
	})
	srv := NewServer(Options{
		Logger:         logger,
		Registry:       reg,
		Hub:            hub,
		Listener:       listener.New(hub, nil, nil, logger),
		Signer:         signer,
		ConnectLimiter: limiter,
		PublicBaseURL:  "https://play.example.com",
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		reg.Shutdown()
		ts.Close()
	})
	return &fixture{srv: srv, ts: ts, registry: reg, signer: signer}
}

func (f *fixture) dial(t *testing.T, query string, subprotocols ...string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	if subprotocols == nil {
		subprotocols = []string{Subprotocol}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	u := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws?" + query
	return websocket.Dial(ctx, u, &websocket.DialOptions{Subprotocols: subprotocols})
}

func (f *fixture) mustDial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	c, _, err := f.dial(t, query)
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) notifier.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var msg notifier.Message
	require.NoError(t, wsjson.Read(ctx, c, &msg))
	return msg
}

// readUntil skips events until one named event arrives.
func readUntil(t *testing.T, c *websocket.Conn, event string) notifier.Message {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := readEvent(t, c)
		if msg["event"] == event {
			return msg
		}
	}
	t.Fatalf("no %s event received", event)
	return nil
}

func closeStatus(t *testing.T, c *websocket.Conn) websocket.StatusCode {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, _, err := c.Read(ctx)
		if err != nil {
			return websocket.CloseStatus(err)
		}
	}
}

func TestGuestIssuesToken(t *testing.T) {
	f := setup(t, 0, nil)

	resp, err := http.Post(f.ts.URL+"/guest", "application/json", strings.NewReader(`{"name":"  Ana "}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body guestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Ana", body.Name)

	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == auth.CookieName {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, body.Token, cookie.Value)

	claims, err := f.signer.AuthenticateJWT(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "Ana", claims.Name)
	id, err := claims.PlayerID()
	require.NoError(t, err)
	assert.Equal(t, body.PlayerID, id)
}

func TestGuestRejectsBadName(t *testing.T) {
	f := setup(t, 0, nil)
	for _, payload := range []string{`{"name":""}`, `{"name":"   "}`, `{"name":"abcdefghijklmnopqrstu"}`, `not json`} {
		resp, err := http.Post(f.ts.URL+"/guest", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, payload)
	}
}

func TestRoomStatus(t *testing.T) {
	f := setup(t, 2, nil)

	get := func(path string) int {
		resp, err := http.Get(f.ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusBadRequest, get("/rooms/not-a-uuid"))
	assert.Equal(t, http.StatusNotFound, get("/rooms/"+uuid.NewString()))

	s, err := f.registry.CreateSession(models.NewPlayer(uuid.New(), "ann", "1.1.1.1"), int(variant.Shuffle))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get("/rooms/"+s.ID().String()))

	_, _, err = f.registry.JoinSession(s.ID(), models.NewPlayer(uuid.New(), "bob", "2.2.2.2"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get("/rooms/"+s.ID().String()))
}

func TestRoomQR(t *testing.T) {
	f := setup(t, 0, nil)

	resp, err := http.Get(f.ts.URL + "/rooms/" + uuid.NewString() + "/qr")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	s, err := f.registry.CreateSession(models.NewPlayer(uuid.New(), "ann", "1.1.1.1"), int(variant.PickWord))
	require.NoError(t, err)
	assert.Equal(t, "https://play.example.com/?room="+s.ID().String(), f.srv.inviteURL(s.ID()))

	resp, err = http.Get(f.ts.URL + "/rooms/" + s.ID().String() + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	png, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestPlayCreatesRoom(t *testing.T) {
	f := setup(t, 0, nil)

	c, resp, err := f.dial(t, "gameId=1&name=Ana")
	require.NoError(t, err)
	defer c.CloseNow()

	var minted bool
	for _, ck := range resp.Cookies() {
		minted = minted || ck.Name == auth.CookieName
	}
	assert.True(t, minted, "a guest cookie is set on the upgrade response")

	msg := readEvent(t, c)
	assert.Equal(t, notifier.EventRoomCreated, msg["event"])
	assert.Equal(t, "Ana", msg["username"])
	roomID, err := uuid.Parse(msg["roomId"].(string))
	require.NoError(t, err)

	_, ok := f.registry.Get(roomID)
	assert.True(t, ok)
	assert.Equal(t, 1, f.srv.Connections())

	require.NoError(t, c.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		return f.registry.Len() == 0 && f.srv.Connections() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPlayJoinAndLeave(t *testing.T) {
	f := setup(t, 0, nil)

	creator := f.mustDial(t, "gameId=2&name=Ana")
	roomID := readEvent(t, creator)["roomId"].(string)

	joiner := f.mustDial(t, "room="+roomID+"&name=Bo")
	joined := readEvent(t, joiner)
	assert.Equal(t, notifier.EventRoomJoined, joined["event"])
	assert.Len(t, joined["party"], 2)

	announced := readUntil(t, creator, notifier.EventPlayerJoined)
	player := announced["player"].(map[string]interface{})
	assert.Equal(t, "Bo", player["name"])

	require.NoError(t, joiner.Close(websocket.StatusNormalClosure, ""))
	left := readUntil(t, creator, notifier.EventPlayerLeft)
	assert.Equal(t, joined["playerId"], left["playerId"])
	assert.Equal(t, 1, f.registry.Len())
}

func TestPlayUnknownRoom(t *testing.T) {
	f := setup(t, 0, nil)

	c := f.mustDial(t, "room="+uuid.NewString())
	msg := readEvent(t, c)
	assert.Equal(t, notifier.EventError, msg["event"])
	assert.EqualValues(t, game.CodeRoomNotFound, msg["code"])
	assert.Equal(t, websocket.StatusCode(RoomError), closeStatus(t, c))
}

func TestPlayInvalidGameType(t *testing.T) {
	f := setup(t, 0, nil)

	c := f.mustDial(t, "gameId=9")
	msg := readEvent(t, c)
	assert.EqualValues(t, game.CodeInvalidGameType, msg["code"])
	assert.Equal(t, websocket.StatusCode(RoomError), closeStatus(t, c))
	assert.Equal(t, 0, f.registry.Len())
}

func TestPlayBadHandshake(t *testing.T) {
	f := setup(t, 0, nil)
	for _, q := range []string{"", "gameId=abc", "room=nope", "gameId=1&room=" + uuid.NewString()} {
		_, resp, err := f.dial(t, q)
		require.Error(t, err, q)
		require.NotNil(t, resp, q)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestPlayConnectLimit(t *testing.T) {
	f := setup(t, 0, denyAll{})

	_, resp, err := f.dial(t, "gameId=1")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestPlayRejectsSecondConnection(t *testing.T) {
	f := setup(t, 0, nil)
	token, err := f.signer.CreateJWT(uuid.New(), "Ana")
	require.NoError(t, err)

	first := f.mustDial(t, "gameId=1&token="+token)
	assert.Equal(t, notifier.EventRoomCreated, readEvent(t, first)["event"])

	second := f.mustDial(t, "gameId=1&token="+token)
	assert.Equal(t, websocket.StatusCode(DuplicateConnectionError), closeStatus(t, second))
	assert.Equal(t, 1, f.registry.Len())
}

func TestPlayRequiresSubprotocol(t *testing.T) {
	f := setup(t, 0, nil)

	c, _, err := f.dial(t, "gameId=1", []string{}...)
	require.NoError(t, err)
	defer c.CloseNow()
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), closeStatus(t, c))
	assert.Equal(t, 0, f.registry.Len())
}

func TestRemovedRoomClosesMembers(t *testing.T) {
	f := setup(t, 0, nil)

	c := f.mustDial(t, "gameId=3")
	roomID, err := uuid.Parse(readEvent(t, c)["roomId"].(string))
	require.NoError(t, err)

	f.registry.RemoveSession(roomID)
	assert.Equal(t, websocket.StatusCode(RoomClosedError), closeStatus(t, c))
	require.Eventually(t, func() bool { return f.srv.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"*"}, originPatterns([]string{"*"}))
	assert.Equal(t, []string{"example.com", "localhost:5173"},
		originPatterns([]string{"https://example.com", " http://localhost:5173", ""}))
}
