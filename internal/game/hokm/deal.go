package hokm

import (
	"fmt"

	"github.com/wfunc/hokm-game/internal/errors"
)

// InitialDealSize Hakim在选主前先拿到的牌数
const InitialDealSize = 5

// DealInitial 首次发牌：给Hakim发前5张，余下47张留作牌堆
// 幂等前置条件：牌堆为空表示本局尚未发过牌
func (st *GameState) DealInitial(deck []Card) error {
	if st.Phase != PhaseDealingInitial {
		return errors.New(errors.ErrConflict, "已不在首发牌阶段")
	}
	if len(st.Deck) != 0 {
		return errors.New(errors.ErrConflict, "本局已发过牌")
	}
	if len(deck) != 52 {
		return errors.Newf(errors.ErrDataIntegrity, "发牌需要完整的52张，收到 %d 张", len(deck))
	}

	hakim := st.PlayerByID(st.HakimID)
	if hakim == nil {
		return errors.New(errors.ErrDataIntegrity, "Hakim不在座位上")
	}

	hakim.Hand = append([]Card(nil), deck[:InitialDealSize]...)
	st.Deck = append([]Card(nil), deck[InitialDealSize:]...)
	st.Phase = PhaseChoosingHokm
	st.AppendLog(fmt.Sprintf("%s 拿到前5张牌，正在选主", hakim.Name))
	st.Touch()
	return nil
}

// SetHokm Hakim选定主花色，随后进入补发牌阶段
func (st *GameState) SetHokm(playerID string, suit Suit) error {
	if st.Phase != PhaseChoosingHokm {
		return errors.New(errors.ErrWrongPhase, "当前不在选主阶段")
	}
	if playerID != st.HakimID {
		return errors.New(errors.ErrNotHakim)
	}
	if !suit.IsValid() {
		return errors.Newf(errors.ErrInvalidSuit, "未知花色 %q", suit)
	}

	st.Hokm = suit
	st.Phase = PhaseDealingRemainder
	st.AppendLog(fmt.Sprintf("%s 选定主花色：%s", st.PlayerByID(playerID).Name, suit))
	st.Touch()
	return nil
}

// DealRemainder 补发剩余手牌，结束后所有在座玩家都是13张、牌堆清空
// 幂等前置条件：所有在座玩家手牌都超过5张说明补发已完成
func (st *GameState) DealRemainder() error {
	if st.Phase != PhaseDealingRemainder {
		return errors.New(errors.ErrConflict, "已不在补发牌阶段")
	}

	allDealt := true
	for i := range st.Seats {
		if st.Seats[i].Occupied && len(st.Seats[i].Player.Hand) <= InitialDealSize {
			allDealt = false
			break
		}
	}
	if allDealt {
		return errors.New(errors.ErrConflict, "补发已完成")
	}

	hakimIdx := st.SeatIndexOf(st.HakimID)
	if hakimIdx < 0 {
		return errors.New(errors.ErrDataIntegrity, "Hakim不在座位上")
	}
	hakim := &st.Seats[hakimIdx].Player

	if st.Mode == Mode2P {
		// 双人局：Hakim再拿8张补到13，对手直接拿剩下的13张
		hakim.Hand = append(hakim.Hand, st.Deck[:8]...)
		opponent := st.PlayerAt((hakimIdx + 1) % 2)
		opponent.Hand = append([]Card(nil), st.Deck[8:21]...)
	} else {
		// 四人局：从Hakim下家起顺时针三家各拿13张，最后8张补给Hakim
		n := st.PlayerCount()
		offset := 0
		for step := 1; step < n; step++ {
			p := st.PlayerAt((hakimIdx + step) % n)
			p.Hand = append([]Card(nil), st.Deck[offset:offset+TricksPerHand]...)
			offset += TricksPerHand
		}
		hakim.Hand = append(hakim.Hand, st.Deck[offset:offset+8]...)
	}

	st.Deck = nil
	st.Phase = PhasePlaying
	st.CurrentTurnPlayerID = st.HakimID
	st.AppendLog("发牌完成，Hakim首攻")
	st.Touch()
	return nil
}
