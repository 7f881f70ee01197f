package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/hokm-game/internal/auth"
	"github.com/wfunc/hokm-game/internal/config"
	"github.com/wfunc/hokm-game/internal/game"
	"github.com/wfunc/hokm-game/internal/game/hokm"
	"github.com/wfunc/hokm-game/internal/store"
	ws "github.com/wfunc/hokm-game/internal/websocket"
	"go.uber.org/zap"
)

func testConfig() config.GameConfig {
	return config.GameConfig{
		Hokm: config.HokmConfig{
			RevealTick:          time.Millisecond,
			HakimDisplayDelay:   0,
			TrickResolveDelay:   time.Millisecond,
			PostDealDelay:       0,
			PerformMaxRetries:   5,
			ActionLogMaxEntries: 100,
		},
		Room: config.RoomConfig{
			MaxRooms: 8,
		},
	}
}

// setupRouter 内存存储上的完整HTTP栈
func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	docs := store.NewMemoryStore()
	coord := game.NewCoordinator(docs, 5)
	cfg := testConfig()
	runners := game.NewRunnerManager(coord, cfg, nil)
	t.Cleanup(runners.StopAll)
	tokens := auth.NewTokenManager("test-secret", 1)
	rooms := game.NewRoomService(coord, runners, tokens, cfg)

	hub := ws.NewHub(docs, rooms, zap.NewNop())
	go hub.Run()

	router := NewRouter(nil, rooms, hub, tokens, zap.NewNop())
	return router.GetEngine()
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// createRoom 建房并返回room_id
func createRoom(t *testing.T, engine *gin.Engine, mode string) string {
	t.Helper()
	w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms", "", CreateRoomRequest{Mode: mode})
	require.Equal(t, 200, w.Code, w.Body.String())

	var resp CreateRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RoomID)
	return resp.RoomID
}

// joinRoom 入座并返回入座结果
func joinRoom(t *testing.T, engine *gin.Engine, roomID, name string) *game.JoinResult {
	t.Helper()
	w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms/"+roomID+"/join", "", JoinRoomRequest{Name: name})
	require.Equal(t, 200, w.Code, w.Body.String())

	var result game.JoinResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotEmpty(t, result.Token)
	return &result
}

func TestHealthCheck(t *testing.T) {
	engine := setupRouter(t)

	w := doJSON(t, engine, http.MethodGet, "/health", "", nil)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCreateRoom(t *testing.T) {
	engine := setupRouter(t)
	roomID := createRoom(t, engine, "4p")
	assert.NotEmpty(t, roomID)
}

func TestCreateRoom_InvalidMode(t *testing.T) {
	engine := setupRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms", "", CreateRoomRequest{Mode: "3p"})
	assert.Equal(t, 422, w.Code)
}

func TestCreateRoom_MissingBody(t *testing.T) {
	engine := setupRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms", "", nil)
	assert.Equal(t, 400, w.Code)
}

func TestJoinRoom(t *testing.T) {
	engine := setupRouter(t)
	roomID := createRoom(t, engine, "2p")

	result := joinRoom(t, engine, roomID, "玩家1")
	assert.Equal(t, 0, result.Seat)
	assert.NotEmpty(t, result.PlayerID)

	result2 := joinRoom(t, engine, roomID, "玩家2")
	assert.Equal(t, 1, result2.Seat)
}

func TestJoinRoom_NotFound(t *testing.T) {
	engine := setupRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms/no-such-room/join", "", JoinRoomRequest{Name: "玩家"})
	assert.Equal(t, 404, w.Code)
}

func TestGetState_RequiresToken(t *testing.T) {
	engine := setupRouter(t)
	roomID := createRoom(t, engine, "2p")

	w := doJSON(t, engine, http.MethodGet, "/api/v1/rooms/"+roomID, "", nil)
	assert.Equal(t, 401, w.Code)
}

func TestGetState(t *testing.T) {
	engine := setupRouter(t)
	roomID := createRoom(t, engine, "2p")
	result := joinRoom(t, engine, roomID, "玩家1")

	w := doJSON(t, engine, http.MethodGet, "/api/v1/rooms/"+roomID, result.Token, nil)
	require.Equal(t, 200, w.Code, w.Body.String())

	var resp StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(hokm.PhaseLobby), string(resp.State.Phase))
	assert.Positive(t, resp.Seq)
}

func TestSwitchSeat(t *testing.T) {
	engine := setupRouter(t)
	roomID := createRoom(t, engine, "4p")
	result := joinRoom(t, engine, roomID, "玩家1")

	w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms/"+roomID+"/switch-seat", result.Token, SwitchSeatRequest{Seat: 2})
	require.Equal(t, 200, w.Code, w.Body.String())

	var resp StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.State.PlayerAt(2))
	assert.Equal(t, result.PlayerID, resp.State.PlayerAt(2).ID)
}

func TestSwitchSeat_InvalidSeat(t *testing.T) {
	engine := setupRouter(t)
	roomID := createRoom(t, engine, "2p")
	result := joinRoom(t, engine, roomID, "玩家1")

	w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms/"+roomID+"/switch-seat", result.Token, SwitchSeatRequest{Seat: 5})
	assert.Equal(t, 400, w.Code)
}

func TestSetHokm_OutsideChoosingPhase(t *testing.T) {
	engine := setupRouter(t)
	roomID := createRoom(t, engine, "4p")
	result := joinRoom(t, engine, roomID, "玩家1")

	w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms/"+roomID+"/hokm", result.Token, SetHokmRequest{Suit: "hearts"})
	assert.Equal(t, 422, w.Code)
}

func TestLeaveRoom_EmptiesAndDeletes(t *testing.T) {
	engine := setupRouter(t)
	roomID := createRoom(t, engine, "2p")
	result := joinRoom(t, engine, roomID, "玩家1")

	w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms/"+roomID+"/leave", result.Token, nil)
	require.Equal(t, 200, w.Code, w.Body.String())

	// 空房被删除后状态查询返回404
	w = doJSON(t, engine, http.MethodGet, "/api/v1/rooms/"+roomID, result.Token, nil)
	assert.Equal(t, 404, w.Code)
}

func TestFullGameOverHTTP_2P(t *testing.T) {
	engine := setupRouter(t)
	roomID := createRoom(t, engine, "2p")

	p1 := joinRoom(t, engine, roomID, "玩家1")
	p2 := joinRoom(t, engine, roomID, "玩家2")

	// poll里不触发断言，失败由Eventually的超时兜底
	getState := func(token string) *StateResponse {
		w := doJSON(t, engine, http.MethodGet, "/api/v1/rooms/"+roomID, token, nil)
		if w.Code != 200 {
			return &StateResponse{State: &hokm.GameState{}}
		}
		var resp StateResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.State == nil {
			return &StateResponse{State: &hokm.GameState{}}
		}
		return &resp
	}

	// 驱动器翻牌定Hakim后进入选主阶段
	require.Eventually(t, func() bool {
		return getState(p1.Token).State.Phase == hokm.PhaseChoosingHokm
	}, 5*time.Second, 10*time.Millisecond)

	st := getState(p1.Token).State
	hakim := st.PlayerByID(st.HakimID)
	require.NotNil(t, hakim)

	tokenOf := func(playerID string) string {
		if playerID == p1.PlayerID {
			return p1.Token
		}
		return p2.Token
	}

	w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms/"+roomID+"/hokm",
		tokenOf(st.HakimID), SetHokmRequest{Suit: "spades"})
	require.Equal(t, 200, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		return getState(p1.Token).State.Phase == hokm.PhasePlaying
	}, 5*time.Second, 10*time.Millisecond)

	// 打完一墩
	for i := 0; i < 2; i++ {
		cur := getState(p1.Token).State
		player := cur.PlayerByID(cur.CurrentTurnPlayerID)
		require.NotNil(t, player)

		var cardID string
		if lead := cur.LeadSuit(); lead != "" {
			for _, card := range player.Hand {
				if card.Suit == lead {
					cardID = card.ID
					break
				}
			}
		}
		if cardID == "" {
			cardID = player.Hand[0].ID
		}

		w := doJSON(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/rooms/%s/play", roomID),
			tokenOf(player.ID), PlayCardRequest{CardID: cardID})
		require.Equal(t, 200, w.Code, w.Body.String())
	}

	require.Eventually(t, func() bool {
		cur := getState(p1.Token).State
		total := cur.CurrentRoundTricks[hokm.Team1] + cur.CurrentRoundTricks[hokm.Team2]
		return total == 1 && len(cur.TableCards) == 0
	}, 5*time.Second, 10*time.Millisecond)
}
