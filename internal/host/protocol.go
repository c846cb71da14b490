// Package host isolates all store access and analyzer scans in a single
// worker context and exposes an asynchronous request/response protocol to the
// interactive side.
package host

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/chatlens/chatlens/internal/store"
)

// Op enumerates every operation the worker understands.
type Op string

const (
	OpImport        Op = "import"
	OpListSessions  Op = "list_sessions"
	OpGetSession    Op = "get_session"
	OpDeleteSession Op = "delete_session"
	OpCloseSession  Op = "close_session"
	OpCloseAll      Op = "close_all"

	OpMemberActivity  Op = "member_activity"
	OpHourlyActivity  Op = "hourly_activity"
	OpDailyActivity   Op = "daily_activity"
	OpWeekdayActivity Op = "weekday_activity"
	OpMonthlyActivity Op = "monthly_activity"
	OpMessageTypes    Op = "message_types"
	OpTimeRange       Op = "time_range"
	OpAvailableYears  Op = "available_years"
	OpNameHistory     Op = "name_history"

	OpRebuildIndex    Op = "rebuild_session_index"
	OpExtendIndex     Op = "extend_session_index"
	OpUpdateThreshold Op = "update_gap_threshold"
	OpChatSessions    Op = "chat_sessions"
	OpClearIndex      Op = "clear_session_index"
	OpSaveSummary     Op = "save_session_summary"
	OpGetSummary      Op = "get_session_summary"

	OpRepeat      Op = "repeat_analysis"
	OpCatchphrase Op = "catchphrase_analysis"
	OpNightOwl    Op = "night_owl_analysis"
	OpDragonKing  Op = "dragon_king_analysis"
	OpDiving      Op = "diving_analysis"
	OpMonologue   Op = "monologue_analysis"
	OpMention     Op = "mention_analysis"
	OpLaugh       Op = "laugh_analysis"
	OpMemeBattle  Op = "meme_battle_analysis"

	OpPing Op = "ping"
)

// Command is the marker interface implemented by all protocol commands.
type Command interface {
	GetOp() Op
}

// sessionScoped is embedded by every command addressing one analysis session.
type sessionScoped struct {
	SessionID string `json:"sessionId"`
}

// SetSession fills the target session id.
func (s *sessionScoped) SetSession(id string) { s.SessionID = id }

// filtered is embedded by commands accepting an optional time filter.
type filtered struct {
	Filter *store.TimeFilter `json:"filter,omitempty"`
}

// SetFilter fills the optional time filter.
func (f *filtered) SetFilter(tf *store.TimeFilter) { f.Filter = tf }

// ImportCommand creates a new analysis session from a parse result.
type ImportCommand struct {
	Payload store.ParseResult `json:"payload"`
}

func (ImportCommand) GetOp() Op { return OpImport }

// ListSessionsCommand enumerates all analysis sessions.
type ListSessionsCommand struct{}

func (ListSessionsCommand) GetOp() Op { return OpListSessions }

// GetSessionCommand fetches one session's info.
type GetSessionCommand struct{ sessionScoped }

func (GetSessionCommand) GetOp() Op { return OpGetSession }

// DeleteSessionCommand removes a session's store file and side files.
type DeleteSessionCommand struct{ sessionScoped }

func (DeleteSessionCommand) GetOp() Op { return OpDeleteSession }

// CloseSessionCommand releases one open store handle.
type CloseSessionCommand struct{ sessionScoped }

func (CloseSessionCommand) GetOp() Op { return OpCloseSession }

// CloseAllCommand releases every open store handle.
type CloseAllCommand struct{}

func (CloseAllCommand) GetOp() Op { return OpCloseAll }

// MemberActivityCommand requests the per-member message leaderboard.
type MemberActivityCommand struct {
	sessionScoped
	filtered
}

func (MemberActivityCommand) GetOp() Op { return OpMemberActivity }

// HourlyActivityCommand requests the 24-hour activity distribution.
type HourlyActivityCommand struct {
	sessionScoped
	filtered
}

func (HourlyActivityCommand) GetOp() Op { return OpHourlyActivity }

// DailyActivityCommand requests the per-day activity trend.
type DailyActivityCommand struct {
	sessionScoped
	filtered
}

func (DailyActivityCommand) GetOp() Op { return OpDailyActivity }

// WeekdayActivityCommand requests the per-weekday distribution.
type WeekdayActivityCommand struct {
	sessionScoped
	filtered
}

func (WeekdayActivityCommand) GetOp() Op { return OpWeekdayActivity }

// MonthlyActivityCommand requests the per-month trend.
type MonthlyActivityCommand struct {
	sessionScoped
	filtered
}

func (MonthlyActivityCommand) GetOp() Op { return OpMonthlyActivity }

// MessageTypesCommand requests the message-type distribution.
type MessageTypesCommand struct {
	sessionScoped
	filtered
}

func (MessageTypesCommand) GetOp() Op { return OpMessageTypes }

// TimeRangeCommand requests the session's message timestamp span.
type TimeRangeCommand struct{ sessionScoped }

func (TimeRangeCommand) GetOp() Op { return OpTimeRange }

// AvailableYearsCommand requests the distinct message years.
type AvailableYearsCommand struct{ sessionScoped }

func (AvailableYearsCommand) GetOp() Op { return OpAvailableYears }

// NameHistoryCommand requests one member's nickname timeline.
type NameHistoryCommand struct {
	sessionScoped
	MemberID int64 `json:"memberId"`
}

func (NameHistoryCommand) GetOp() Op { return OpNameHistory }

// RebuildIndexCommand regenerates the conversational-session index.
type RebuildIndexCommand struct {
	sessionScoped
	Threshold int64 `json:"threshold,omitempty"`
}

func (RebuildIndexCommand) GetOp() Op { return OpRebuildIndex }

// ExtendIndexCommand extends the index over newly imported messages.
type ExtendIndexCommand struct{ sessionScoped }

func (ExtendIndexCommand) GetOp() Op { return OpExtendIndex }

// UpdateThresholdCommand persists a new gap threshold and rebuilds.
type UpdateThresholdCommand struct {
	sessionScoped
	Threshold int64 `json:"threshold"`
}

func (UpdateThresholdCommand) GetOp() Op { return OpUpdateThreshold }

// ChatSessionsCommand pages through the derived sessions.
type ChatSessionsCommand struct {
	sessionScoped
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

func (ChatSessionsCommand) GetOp() Op { return OpChatSessions }

// ClearIndexCommand drops the derived session index.
type ClearIndexCommand struct{ sessionScoped }

func (ClearIndexCommand) GetOp() Op { return OpClearIndex }

// SaveSummaryCommand stores a summary for one derived session.
type SaveSummaryCommand struct {
	sessionScoped
	ChatSessionID int64  `json:"chatSessionId"`
	Summary       string `json:"summary"`
}

func (SaveSummaryCommand) GetOp() Op { return OpSaveSummary }

// GetSummaryCommand fetches a derived session's summary.
type GetSummaryCommand struct {
	sessionScoped
	ChatSessionID int64 `json:"chatSessionId"`
}

func (GetSummaryCommand) GetOp() Op { return OpGetSummary }

// RepeatCommand runs the repeat-chain analyzer.
type RepeatCommand struct {
	sessionScoped
	filtered
}

func (RepeatCommand) GetOp() Op { return OpRepeat }

// CatchphraseCommand runs the catchphrase analyzer.
type CatchphraseCommand struct {
	sessionScoped
	filtered
	MinCount int `json:"minCount,omitempty"`
	TopN     int `json:"topN,omitempty"`
}

func (CatchphraseCommand) GetOp() Op { return OpCatchphrase }

// NightOwlCommand runs the night-owl analyzer.
type NightOwlCommand struct {
	sessionScoped
	filtered
}

func (NightOwlCommand) GetOp() Op { return OpNightOwl }

// DragonKingCommand runs the dragon-king analyzer.
type DragonKingCommand struct {
	sessionScoped
	filtered
}

func (DragonKingCommand) GetOp() Op { return OpDragonKing }

// DivingCommand runs the diving analyzer.
type DivingCommand struct {
	sessionScoped
	filtered
}

func (DivingCommand) GetOp() Op { return OpDiving }

// MonologueCommand runs the monologue analyzer.
type MonologueCommand struct {
	sessionScoped
	filtered
	MinRun int `json:"minRun,omitempty"`
}

func (MonologueCommand) GetOp() Op { return OpMonologue }

// MentionCommand runs the mention analyzer.
type MentionCommand struct {
	sessionScoped
	filtered
}

func (MentionCommand) GetOp() Op { return OpMention }

// LaughCommand runs the laugh analyzer.
type LaughCommand struct {
	sessionScoped
	filtered
	Keywords []string `json:"keywords,omitempty"`
}

func (LaughCommand) GetOp() Op { return OpLaugh }

// MemeBattleCommand runs the meme-battle analyzer.
type MemeBattleCommand struct {
	sessionScoped
	filtered
	MaxGap  int64 `json:"maxGap,omitempty"`
	MinSize int   `json:"minSize,omitempty"`
}

func (MemeBattleCommand) GetOp() Op { return OpMemeBattle }

// PingCommand is a worker liveness probe.
type PingCommand struct{}

func (PingCommand) GetOp() Op { return OpPing }

// Request is the wire envelope of the stdio bridge: a correlation id, an
// operation name, and the operation-specific payload.
type Request struct {
	ID      string          `json:"id"`
	Op      Op              `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the wire envelope of results. Exactly one of Result and Error
// is meaningful depending on OK.
type Response struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewRequestID generates a correlation id.
func NewRequestID() string {
	return uuid.NewString()
}

// DecodeRequest converts a wire request into a strongly typed command.
func DecodeRequest(data []byte) (string, Command, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return "", nil, fmt.Errorf("decode request: %w", err)
	}
	cmd, err := decodeCommand(req.Op, req.Payload)
	if err != nil {
		return req.ID, nil, err
	}
	return req.ID, cmd, nil
}

func decodeCommand(op Op, payload json.RawMessage) (Command, error) {
	unpack := func(cmd Command) (Command, error) {
		if len(payload) == 0 {
			return cmd, nil
		}
		if err := json.Unmarshal(payload, cmd); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", op, err)
		}
		return cmd, nil
	}

	switch op {
	case OpImport:
		return unpack(&ImportCommand{})
	case OpListSessions:
		return unpack(&ListSessionsCommand{})
	case OpGetSession:
		return unpack(&GetSessionCommand{})
	case OpDeleteSession:
		return unpack(&DeleteSessionCommand{})
	case OpCloseSession:
		return unpack(&CloseSessionCommand{})
	case OpCloseAll:
		return unpack(&CloseAllCommand{})
	case OpMemberActivity:
		return unpack(&MemberActivityCommand{})
	case OpHourlyActivity:
		return unpack(&HourlyActivityCommand{})
	case OpDailyActivity:
		return unpack(&DailyActivityCommand{})
	case OpWeekdayActivity:
		return unpack(&WeekdayActivityCommand{})
	case OpMonthlyActivity:
		return unpack(&MonthlyActivityCommand{})
	case OpMessageTypes:
		return unpack(&MessageTypesCommand{})
	case OpTimeRange:
		return unpack(&TimeRangeCommand{})
	case OpAvailableYears:
		return unpack(&AvailableYearsCommand{})
	case OpNameHistory:
		return unpack(&NameHistoryCommand{})
	case OpRebuildIndex:
		return unpack(&RebuildIndexCommand{})
	case OpExtendIndex:
		return unpack(&ExtendIndexCommand{})
	case OpUpdateThreshold:
		return unpack(&UpdateThresholdCommand{})
	case OpChatSessions:
		return unpack(&ChatSessionsCommand{})
	case OpClearIndex:
		return unpack(&ClearIndexCommand{})
	case OpSaveSummary:
		return unpack(&SaveSummaryCommand{})
	case OpGetSummary:
		return unpack(&GetSummaryCommand{})
	case OpRepeat:
		return unpack(&RepeatCommand{})
	case OpCatchphrase:
		return unpack(&CatchphraseCommand{})
	case OpNightOwl:
		return unpack(&NightOwlCommand{})
	case OpDragonKing:
		return unpack(&DragonKingCommand{})
	case OpDiving:
		return unpack(&DivingCommand{})
	case OpMonologue:
		return unpack(&MonologueCommand{})
	case OpMention:
		return unpack(&MentionCommand{})
	case OpLaugh:
		return unpack(&LaughCommand{})
	case OpMemeBattle:
		return unpack(&MemeBattleCommand{})
	case OpPing:
		return unpack(&PingCommand{})
	default:
		return nil, fmt.Errorf("unknown operation: %s", op)
	}
}
