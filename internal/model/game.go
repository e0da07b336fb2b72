package model

import "time"

// Phase 房间游戏阶段
type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseWordSelection Phase = "word-selection"
	PhaseLive          Phase = "live"
)

// WordMode 词语展示模式
type WordMode string

const (
	WordModeNormal WordMode = "normal"
	WordModeHidden WordMode = "hidden"
	WordModeBoth   WordMode = "both"
)

// 默认游戏参数
const (
	DefaultDrawTime     = 60
	DefaultHints        = 2
	DefaultRounds       = 3
	DefaultCurrentRound = 1
	DefaultWordCount    = 3
	DefaultWord         = "Random Word"
)

// GameState 房间游戏状态
type GameState struct {
	Phase        Phase    `json:"status"`       // 当前阶段
	TurnOrder    []string `json:"players"`      // 轮流作画顺序（连接ID，按加入顺序）
	CurrentTurn  int      `json:"currentTurn"`  // 当前作画者在 TurnOrder 中的下标
	Word         string   `json:"word"`         // 本轮词语
	StartTime    int64    `json:"startTime"`    // 本阶段开始时间（Unix 毫秒）
	DrawTime     int      `json:"drawTime"`     // 作画时长（秒）
	Hints        int      `json:"hints"`        // 提示次数
	Rounds       int      `json:"rounds"`       // 总轮数
	CurrentRound int      `json:"currentRound"` // 当前轮数
	WordCount    int      `json:"wordCount"`    // 候选词数量
	WordMode     WordMode `json:"wordMode"`     // 词语展示模式
}

// NewGameState 创建默认游戏状态
func NewGameState() GameState {
	return GameState{
		Phase:        PhaseLobby,
		TurnOrder:    make([]string, 0),
		CurrentTurn:  0,
		Word:         DefaultWord,
		DrawTime:     DefaultDrawTime,
		Hints:        DefaultHints,
		Rounds:       DefaultRounds,
		CurrentRound: DefaultCurrentRound,
		WordCount:    DefaultWordCount,
		WordMode:     WordModeNormal,
	}
}

// Clone 深拷贝
func (g GameState) Clone() GameState {
	g.TurnOrder = append([]string(nil), g.TurnOrder...)
	if g.TurnOrder == nil {
		g.TurnOrder = make([]string, 0)
	}
	return g
}

// Configuration 房主提交的游戏配置
type Configuration struct {
	RoomKey   string   `json:"room"`
	DrawTime  int      `json:"drawTime"`
	Hints     int      `json:"hints"`
	Rounds    int      `json:"rounds"`
	WordCount int      `json:"wordCount"`
	WordMode  WordMode `json:"wordMode"`
}

// GameResult 归档的对局结果（每名玩家一行）
type GameResult struct {
	RoomKey    string    `json:"room"`
	FinishedAt time.Time `json:"finishedAt"`
	Rank       int       `json:"rank"`
	PlayerID   string    `json:"id"`
	PlayerName string    `json:"name"`
	Emoji      string    `json:"emoji"`
	Score      int       `json:"score"`
}
