package hokm

import (
	"fmt"
	"math/rand"
)

// Suit 花色
type Suit string

const (
	SuitSpades   Suit = "spades"
	SuitHearts   Suit = "hearts"
	SuitClubs    Suit = "clubs"
	SuitDiamonds Suit = "diamonds"
)

// Suits 全部四种花色（固定顺序）
var Suits = []Suit{SuitSpades, SuitHearts, SuitClubs, SuitDiamonds}

// IsValid 判断花色是否合法
func (s Suit) IsValid() bool {
	switch s {
	case SuitSpades, SuitHearts, SuitClubs, SuitDiamonds:
		return true
	}
	return false
}

// Rank 点数，2-10为数字牌，11-14为J/Q/K/A
type Rank int

const (
	RankJack  Rank = 11
	RankQueen Rank = 12
	RankKing  Rank = 13
	RankAce   Rank = 14
)

// MinRank 最小点数
const MinRank Rank = 2

// Card 一张牌，创建后不可变，以ID作为唯一标识
type Card struct {
	ID   string `json:"id"`
	Suit Suit   `json:"suit"`
	Rank Rank   `json:"rank"`
}

// CardID 生成牌的确定性ID
func CardID(suit Suit, rank Rank) string {
	return fmt.Sprintf("%s-%d", suit, rank)
}

// NewDeck 创建一副洗好的52张牌
// 洗牌采用Fisher-Yates：从最后一位向前，每位与[0,i]内均匀随机位互换，
// 在rng均匀的前提下52!种排列等概率
func NewDeck(rng *rand.Rand) []Card {
	deck := make([]Card, 0, 52)
	for _, suit := range Suits {
		for rank := MinRank; rank <= RankAce; rank++ {
			deck = append(deck, Card{
				ID:   CardID(suit, rank),
				Suit: suit,
				Rank: rank,
			})
		}
	}

	for i := len(deck) - 1; i >= 1; i-- {
		j := rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}

	return deck
}
