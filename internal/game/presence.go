package game

import (
	"fmt"

	"github.com/wfunc/hokm-game/internal/game/hokm"
)

// PresenceCorrection 一条在线标志修正
type PresenceCorrection struct {
	PlayerID string
	Online   bool
}

// ReconcilePresence 对比文档里的在线标志和实时在线集合，产出需要的修正
// 调用方只在selfID自身在线时调用；selfID永远不会被标记离线，
// 自己的离线由别人（或大厅的Leave）来宣告
func ReconcilePresence(selfID string, online map[string]bool, st *hokm.GameState) []PresenceCorrection {
	var corrections []PresenceCorrection
	for i := range st.Seats {
		if !st.Seats[i].Occupied {
			continue
		}
		p := st.Seats[i].Player
		actual := online[p.ID]
		if p.ID == selfID {
			actual = true
		}
		if p.IsConnected != actual {
			corrections = append(corrections, PresenceCorrection{PlayerID: p.ID, Online: actual})
		}
	}
	return corrections
}

// ApplyPresence 把修正写回文档，返回是否有实际变化
func ApplyPresence(st *hokm.GameState, corrections []PresenceCorrection) bool {
	changed := false
	for _, c := range corrections {
		p := st.PlayerByID(c.PlayerID)
		if p == nil || p.IsConnected == c.Online {
			continue
		}
		p.IsConnected = c.Online
		if c.Online {
			st.AppendLog(fmt.Sprintf("%s 重新连接", p.Name))
		} else {
			st.AppendLog(fmt.Sprintf("%s 断开了连接", p.Name))
		}
		changed = true
	}
	if changed {
		st.Touch()
	}
	return changed
}
