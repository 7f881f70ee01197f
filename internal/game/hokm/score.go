package hokm

import (
	"fmt"

	"github.com/wfunc/hokm-game/internal/errors"
)

// RoundPoints 单局结束的计分
// 7-0（Kot）且赢家是Hakim队得2分，7-0且赢家非Hakim队得3分，其余得1分
func RoundPoints(losingTricks int, winnerIsHakimTeam bool) int {
	if losingTricks == 0 {
		if winnerIsHakimTeam {
			return 2
		}
		return 3
	}
	return 1
}

// ResolveTrick 满墩结算：计墩、换首攻，必要时结束本局或整场
// 幂等前置条件：桌面必须恰好摆满一墩
func (st *GameState) ResolveTrick() error {
	if st.Phase != PhasePlaying {
		return errors.New(errors.ErrConflict, "已不在出牌阶段")
	}
	if len(st.TableCards) != st.PlayerCount() {
		return errors.Newf(errors.ErrConflict, "本墩未出满（%d/%d）", len(st.TableCards), st.PlayerCount())
	}

	winnerID := TrickWinner(st.TableCards, st.Hokm, st.LeadSuit())
	winner := st.PlayerByID(winnerID)
	if winner == nil {
		return errors.New(errors.ErrDataIntegrity, "赢家不在座位上")
	}

	st.CurrentRoundTricks[winner.TeamID]++
	st.LastWinnerID = winnerID
	st.CurrentTurnPlayerID = winnerID
	st.AppendLog(fmt.Sprintf("%s 赢下本墩（%d:%d）",
		winner.Name, st.CurrentRoundTricks[Team1], st.CurrentRoundTricks[Team2]))

	// 一队拿满7墩即结束本局，否则清桌继续
	if st.CurrentRoundTricks[winner.TeamID] < WinScore {
		st.TableCards = nil
		st.Touch()
		return nil
	}

	st.finishHand(winner.TeamID)
	st.Touch()
	return nil
}

// finishHand 本局结束：计分、判断整场胜负、轮换Hakim并重置进入下一局
func (st *GameState) finishHand(winnerTeam TeamID) {
	loserTeam := Team1
	if winnerTeam == Team1 {
		loserTeam = Team2
	}

	hakimTeam := st.TeamOf(st.HakimID)
	points := RoundPoints(st.CurrentRoundTricks[loserTeam], winnerTeam == hakimTeam)
	st.Scores[winnerTeam] += points
	if st.CurrentRoundTricks[loserTeam] == 0 {
		st.AppendLog(fmt.Sprintf("Kot！%d队7:0拿下本局，得%d分", winnerTeam, points))
	} else {
		st.AppendLog(fmt.Sprintf("%d队拿下本局，得%d分", winnerTeam, points))
	}

	// 一旦到达7分立即终局，桌面保留用于最终展示
	if st.Scores[winnerTeam] >= WinScore {
		st.Phase = PhaseMatchEnd
		st.AppendLog(fmt.Sprintf("比赛结束，%d队获胜（%d:%d）",
			winnerTeam, st.Scores[Team1], st.Scores[Team2]))
		return
	}

	// Hakim队输掉本局才轮换，顺时针传给下家
	if winnerTeam != hakimTeam {
		hakimIdx := st.SeatIndexOf(st.HakimID)
		next := st.PlayerAt((hakimIdx + 1) % st.PlayerCount())
		st.HakimID = next.ID
		st.AppendLog(fmt.Sprintf("Hakim轮换给 %s", next.Name))
	}

	// 重置进入下一局，手牌清空（提前到7墩时可能还有余牌）
	for i := range st.Seats {
		if st.Seats[i].Occupied {
			st.Seats[i].Player.Hand = nil
		}
	}
	st.Deck = nil
	st.TableCards = nil
	st.CurrentRoundTricks = map[TeamID]int{Team1: 0, Team2: 0}
	st.Hokm = ""
	st.HakimDeterminationCards = nil
	st.CurrentTurnPlayerID = st.HakimID
	st.Phase = PhaseDealingInitial
}
