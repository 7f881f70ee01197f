package hokm

import (
	"fmt"

	"github.com/wfunc/hokm-game/internal/errors"
)

// LeadSuit 本墩首攻花色，空墩返回空
func (st *GameState) LeadSuit() Suit {
	if len(st.TableCards) == 0 {
		return ""
	}
	return st.TableCards[0].Card.Suit
}

// PlayCard 当前回合玩家打出一张牌
// 合法性：轮到自己、本墩未满、持有该牌、满足跟牌规则（手上还有
// 首攻花色时必须跟；没有时任意牌包括主牌都合法）
func (st *GameState) PlayCard(playerID, cardID string) error {
	if st.Phase != PhasePlaying {
		return errors.New(errors.ErrWrongPhase, "当前不在出牌阶段")
	}
	if playerID != st.CurrentTurnPlayerID {
		return errors.New(errors.ErrNotYourTurn)
	}
	if len(st.TableCards) >= st.PlayerCount() {
		return errors.New(errors.ErrTableFull)
	}

	idx := st.SeatIndexOf(playerID)
	player := st.PlayerAt(idx)
	if player == nil {
		return errors.New(errors.ErrNotFound, "玩家不在房间内")
	}

	card, held := player.HoldsCard(cardID)
	if !held {
		return errors.Newf(errors.ErrCardNotHeld, "牌 %s 不在手中", cardID)
	}

	if lead := st.LeadSuit(); lead != "" && card.Suit != lead && player.HoldsSuit(lead) {
		return errors.Newf(errors.ErrFollowSuit, "手中还有 %s", lead)
	}

	// 从手牌移除并落到桌面
	for i, c := range player.Hand {
		if c.ID == cardID {
			player.Hand = append(player.Hand[:i], player.Hand[i+1:]...)
			break
		}
	}
	st.TableCards = append(st.TableCards, PlayedCard{PlayerID: playerID, Card: card})

	// 回合顺时针传给下一个座位
	next := st.PlayerAt((idx + 1) % st.PlayerCount())
	st.CurrentTurnPlayerID = next.ID
	st.AppendLog(fmt.Sprintf("%s 出了 %s", player.Name, card.ID))
	st.Touch()
	return nil
}

// TrickWinner 判定一墩的赢家，返回其玩家ID
// 规则依次为：主牌压非主牌；同为主牌比点数；都不是主牌时只有
// 跟上首攻花色且点数更大的牌才能反超。既非主牌也非首攻花色的牌
// 永远赢不了
func TrickWinner(plays []PlayedCard, hokm Suit, leadSuit Suit) string {
	if len(plays) == 0 {
		panic("hokm: 空墩无法判定赢家")
	}

	winner := plays[0]
	for _, p := range plays[1:] {
		c := p.Card
		w := winner.Card
		switch {
		case c.Suit == hokm && w.Suit != hokm:
			winner = p
		case c.Suit == hokm && w.Suit == hokm:
			if c.Rank > w.Rank {
				winner = p
			}
		case w.Suit != hokm:
			if c.Suit == leadSuit && w.Suit == leadSuit && c.Rank > w.Rank {
				winner = p
			}
		}
	}

	return winner.PlayerID
}
