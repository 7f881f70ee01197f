package hokm

import (
	"fmt"

	"github.com/wfunc/hokm-game/internal/errors"
)

// DeterminationSeat 第k张翻牌（1起）归属的座位：单张轮发
func DeterminationSeat(k, playerCount int) int {
	return (k - 1) % playerCount
}

// RevealCard Hakim判定阶段翻开一张牌
// 翻到A的座位成为Hakim并获得首攻权；翻完后调用方负责在展示延迟后
// 通过AdvanceAfterDetermination推进阶段。已离开判定阶段或已出A时中止，
// 保证重复触发是安全的空操作
func (st *GameState) RevealCard(card Card) (found bool, err error) {
	if st.Phase != PhaseDetermining {
		return false, errors.New(errors.ErrConflict, "已不在Hakim判定阶段")
	}
	if st.HakimID != "" {
		return false, errors.New(errors.ErrConflict, "Hakim已确定")
	}

	st.HakimDeterminationCards = append(st.HakimDeterminationCards, card)

	if card.Rank != RankAce {
		st.Touch()
		return false, nil
	}

	// 翻到A：该张牌归属的座位成为Hakim
	k := len(st.HakimDeterminationCards)
	seat := DeterminationSeat(k, st.PlayerCount())
	p := st.PlayerAt(seat)
	if p == nil {
		// 判定阶段只有满座才会进入，空座意味着文档被破坏
		return false, errors.Newf(errors.ErrDataIntegrity, "判定阶段座位 %d 为空", seat)
	}

	st.HakimID = p.ID
	st.CurrentTurnPlayerID = p.ID
	st.AppendLog(fmt.Sprintf("%s 翻到了A，成为Hakim", p.Name))
	st.Touch()
	return true, nil
}

// AdvanceAfterDetermination 展示延迟结束后进入首发牌阶段
func (st *GameState) AdvanceAfterDetermination() error {
	if st.Phase != PhaseDetermining {
		return errors.New(errors.ErrConflict, "已不在Hakim判定阶段")
	}
	if st.HakimID == "" {
		return errors.New(errors.ErrConflict, "Hakim尚未确定")
	}

	st.Phase = PhaseDealingInitial
	st.Touch()
	return nil
}
