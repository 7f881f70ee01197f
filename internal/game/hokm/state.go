package hokm

import (
	"fmt"
	"time"

	"github.com/wfunc/hokm-game/internal/errors"
)

// Mode 游戏模式：2人或4人
type Mode string

const (
	Mode2P Mode = "2p"
	Mode4P Mode = "4p"
)

// PlayerCount 模式对应的座位数
func (m Mode) PlayerCount() int {
	if m == Mode2P {
		return 2
	}
	return 4
}

// IsValid 判断模式是否合法
func (m Mode) IsValid() bool {
	return m == Mode2P || m == Mode4P
}

// Phase 房间所处的阶段
type Phase string

const (
	PhaseLobby            Phase = "lobby"             // 等待玩家入座
	PhaseDetermining      Phase = "determining"       // 翻牌确定Hakim
	PhaseDealingInitial   Phase = "dealing_initial"   // 给Hakim发前5张
	PhaseChoosingHokm     Phase = "choosing_hokm"     // Hakim选主花色
	PhaseDealingRemainder Phase = "dealing_remainder" // 发剩余手牌
	PhasePlaying          Phase = "playing"           // 出牌对局中
	PhaseMatchEnd         Phase = "match_end"         // 比赛结束（终态）
)

// TeamID 队伍编号
type TeamID int

const (
	Team1 TeamID = 1
	Team2 TeamID = 2
)

// WinScore 先达到该分数的队伍获胜，同时也是单局7墩的结束线
const WinScore = 7

// TricksPerHand 一局共13墩
const TricksPerHand = 13

// Player 在座玩家
type Player struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Hand        []Card `json:"hand"`
	TeamID      TeamID `json:"team_id"`
	IsConnected bool   `json:"is_connected"`
}

// HoldsCard 判断玩家是否持有指定ID的牌
func (p *Player) HoldsCard(cardID string) (Card, bool) {
	for _, c := range p.Hand {
		if c.ID == cardID {
			return c, true
		}
	}
	return Card{}, false
}

// HoldsSuit 判断玩家手牌中是否还有指定花色
func (p *Player) HoldsSuit(suit Suit) bool {
	for _, c := range p.Hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

// Seat 座位，空座或被玩家占据
type Seat struct {
	Occupied bool   `json:"occupied"`
	Player   Player `json:"player"`
}

// PlayedCard 本墩中已打出的一张牌
type PlayedCard struct {
	PlayerID string `json:"player_id"`
	Card     Card   `json:"card"`
}

// GameState 房间共享文档的聚合根
type GameState struct {
	RoomID                  string         `json:"room_id"`
	Mode                    Mode           `json:"mode"`
	Phase                   Phase          `json:"phase"`
	Seats                   []Seat         `json:"seats"`
	Deck                    []Card         `json:"deck"`
	HakimID                 string         `json:"hakim_id"`
	Hokm                    Suit           `json:"hokm"`
	CurrentTurnPlayerID     string         `json:"current_turn_player_id"`
	TableCards              []PlayedCard   `json:"table_cards"`
	Scores                  map[TeamID]int `json:"scores"`
	CurrentRoundTricks      map[TeamID]int `json:"current_round_tricks"`
	HakimDeterminationCards []Card         `json:"hakim_determination_cards"`
	LastWinnerID            string         `json:"last_winner_id"`
	Logs                    []string       `json:"logs"`
	LastActionAt            time.Time      `json:"last_action_at"`
}

// NewGameState 创建空房间文档（大厅阶段）
func NewGameState(roomID string, mode Mode) *GameState {
	return &GameState{
		RoomID:             roomID,
		Mode:               mode,
		Phase:              PhaseLobby,
		Seats:              make([]Seat, mode.PlayerCount()),
		Scores:             map[TeamID]int{Team1: 0, Team2: 0},
		CurrentRoundTricks: map[TeamID]int{Team1: 0, Team2: 0},
		LastActionAt:       time.Now(),
	}
}

// PlayerCount 座位数
func (st *GameState) PlayerCount() int {
	return len(st.Seats)
}

// SeatTeam 座位索引对应的队伍：偶数座1队，奇数座2队
func SeatTeam(index int) TeamID {
	if index%2 == 0 {
		return Team1
	}
	return Team2
}

// SeatIndexOf 查找玩家所在座位，未入座返回-1
func (st *GameState) SeatIndexOf(playerID string) int {
	for i, seat := range st.Seats {
		if seat.Occupied && seat.Player.ID == playerID {
			return i
		}
	}
	return -1
}

// PlayerAt 按座位取玩家指针，空座返回nil
func (st *GameState) PlayerAt(index int) *Player {
	if index < 0 || index >= len(st.Seats) || !st.Seats[index].Occupied {
		return nil
	}
	return &st.Seats[index].Player
}

// PlayerByID 按ID取玩家指针，不在座返回nil
func (st *GameState) PlayerByID(playerID string) *Player {
	return st.PlayerAt(st.SeatIndexOf(playerID))
}

// OccupiedCount 已入座人数
func (st *GameState) OccupiedCount() int {
	n := 0
	for _, seat := range st.Seats {
		if seat.Occupied {
			n++
		}
	}
	return n
}

// IsFull 是否满座
func (st *GameState) IsFull() bool {
	return st.OccupiedCount() == len(st.Seats)
}

// TeamOf 玩家所属队伍，不在座返回0
func (st *GameState) TeamOf(playerID string) TeamID {
	if p := st.PlayerByID(playerID); p != nil {
		return p.TeamID
	}
	return 0
}

// Join 占据第一个空座，满座后自动进入Hakim判定阶段
func (st *GameState) Join(playerID, name string) (int, error) {
	if st.Phase != PhaseLobby {
		return -1, errors.New(errors.ErrRoomClosed, "对局已开始")
	}
	if st.SeatIndexOf(playerID) >= 0 {
		return -1, errors.New(errors.ErrAlreadyExists, "玩家已在房间内")
	}

	for i := range st.Seats {
		if st.Seats[i].Occupied {
			continue
		}
		st.Seats[i] = Seat{
			Occupied: true,
			Player: Player{
				ID:          playerID,
				Name:        name,
				TeamID:      SeatTeam(i),
				IsConnected: true,
			},
		}
		st.AppendLog(fmt.Sprintf("%s 加入了房间（座位%d）", name, i+1))
		st.Touch()

		// 最后一个座位占据的同一事务内直接进入判定阶段
		if st.IsFull() {
			st.Phase = PhaseDetermining
			st.AppendLog("人齐了，开始翻牌确定Hakim")
		}
		return i, nil
	}

	return -1, errors.New(errors.ErrRoomFull)
}

// SwitchSeat 大厅内换座，目标座位有人则互换，队伍随座位变化
func (st *GameState) SwitchSeat(playerID string, target int) error {
	if st.Phase != PhaseLobby {
		return errors.New(errors.ErrWrongPhase, "只能在大厅内换座")
	}
	if target < 0 || target >= len(st.Seats) {
		return errors.Newf(errors.ErrSeatInvalid, "座位 %d 超出范围 [0,%d)", target, len(st.Seats))
	}

	from := st.SeatIndexOf(playerID)
	if from < 0 {
		return errors.New(errors.ErrNotFound, "玩家不在房间内")
	}
	if from == target {
		return nil
	}

	st.Seats[from], st.Seats[target] = st.Seats[target], st.Seats[from]
	if st.Seats[from].Occupied {
		st.Seats[from].Player.TeamID = SeatTeam(from)
	}
	st.Seats[target].Player.TeamID = SeatTeam(target)
	st.AppendLog(fmt.Sprintf("%s 换到了座位%d", st.Seats[target].Player.Name, target+1))
	st.Touch()
	return nil
}

// Leave 玩家离开：大厅内清空座位，对局中保留座位仅标记离线
func (st *GameState) Leave(playerID string) error {
	idx := st.SeatIndexOf(playerID)
	if idx < 0 {
		return errors.New(errors.ErrNotFound, "玩家不在房间内")
	}

	name := st.Seats[idx].Player.Name
	if st.Phase == PhaseLobby {
		st.Seats[idx] = Seat{}
		st.AppendLog(fmt.Sprintf("%s 离开了房间", name))
	} else {
		st.Seats[idx].Player.IsConnected = false
		st.AppendLog(fmt.Sprintf("%s 断开了连接", name))
	}
	st.Touch()
	return nil
}

// FirstConnectedPlayer 座位序第一个在线玩家，无人在线返回nil
func (st *GameState) FirstConnectedPlayer() *Player {
	for i := range st.Seats {
		if st.Seats[i].Occupied && st.Seats[i].Player.IsConnected {
			return &st.Seats[i].Player
		}
	}
	return nil
}

// Touch 刷新最后操作时间戳
func (st *GameState) Touch() {
	st.LastActionAt = time.Now()
}

// AppendLog 追加一条房间日志
func (st *GameState) AppendLog(entry string) {
	st.Logs = append(st.Logs, entry)
}

// TrimLogs 裁剪日志到最近max条
func (st *GameState) TrimLogs(max int) {
	if max > 0 && len(st.Logs) > max {
		st.Logs = st.Logs[len(st.Logs)-max:]
	}
}

// Clone 深拷贝整个文档
func (st *GameState) Clone() *GameState {
	cp := *st

	cp.Seats = make([]Seat, len(st.Seats))
	copy(cp.Seats, st.Seats)
	for i := range cp.Seats {
		if cp.Seats[i].Occupied {
			cp.Seats[i].Player.Hand = append([]Card(nil), st.Seats[i].Player.Hand...)
		}
	}

	cp.Deck = append([]Card(nil), st.Deck...)
	cp.TableCards = append([]PlayedCard(nil), st.TableCards...)
	cp.HakimDeterminationCards = append([]Card(nil), st.HakimDeterminationCards...)
	cp.Logs = append([]string(nil), st.Logs...)

	cp.Scores = map[TeamID]int{Team1: st.Scores[Team1], Team2: st.Scores[Team2]}
	cp.CurrentRoundTricks = map[TeamID]int{
		Team1: st.CurrentRoundTricks[Team1],
		Team2: st.CurrentRoundTricks[Team2],
	}

	return &cp
}
