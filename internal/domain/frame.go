package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type UserID string

type Event int

// Типы кадров на проводе
const (
	EventText   Event = 0
	EventAction Event = 1
)

type Action string

const (
	ActionWaiting   Action = "waiting"
	ActionJoined    Action = "joined"
	ActionOffline   Action = "offline"
	ActionLeaved    Action = "leaved"
	ActionIsTyping  Action = "istyping"
	ActionEndTyping Action = "endtyping"
)

// ParseAction сопоставляет payload с закрытым набором ключевых слов.
// Неизвестное слово: ok=false, это no-op, а не ошибка.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionWaiting, ActionJoined, ActionOffline, ActionLeaved, ActionIsTyping, ActionEndTyping:
		return a, true
	default:
		return "", false
	}
}

// Frame: единица протокола. channel_id уходит на провод только в схеме
// с сырым id канала, при bearer-токене канал определяется по токену.
type Frame struct {
	Event     Event  `json:"event"`
	UserID    UserID `json:"user_id"`
	Payload   string `json:"payload"`
	Time      Stamp  `json:"time,omitzero"`
	ChannelID string `json:"channel_id,omitempty"`
}

func (f Frame) Action() (Action, bool) {
	if f.Event != EventAction {
		return "", false
	}
	return ParseAction(f.Payload)
}

func (f Frame) Encode() []byte {
	b, _ := json.Marshal(f)
	return b
}

// DecodeFrame разбирает кадр; ok=false для неизвестного event.
func DecodeFrame(data []byte) (Frame, bool) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, false
	}
	if f.Event != EventText && f.Event != EventAction {
		return Frame{}, false
	}
	return f, true
}

const StampLayout = "2006/01/02 15:04"

// Stamp: время кадра. Один вариант сервера шлёт строку "2006/01/02 15:04",
// другой: unix-миллисекунды числом.
type Stamp struct {
	text   string
	millis int64
}

func StampText(s string) Stamp { return Stamp{text: s} }

func StampMillis(ms int64) Stamp { return Stamp{millis: ms} }

func StampAt(t time.Time) Stamp { return Stamp{text: t.Format(StampLayout)} }

func (s Stamp) IsZero() bool { return s.text == "" && s.millis == 0 }

// Clock: часы:минуты для отображения.
func (s Stamp) Clock() string {
	if s.millis != 0 {
		return time.UnixMilli(s.millis).Local().Format("15:04")
	}
	if i := strings.LastIndexByte(s.text, ' '); i >= 0 {
		return s.text[i+1:]
	}
	return s.text
}

func (s Stamp) String() string {
	if s.millis != 0 {
		return time.UnixMilli(s.millis).Local().Format(StampLayout)
	}
	return s.text
}

func (s Stamp) MarshalJSON() ([]byte, error) {
	if s.millis != 0 {
		return []byte(strconv.FormatInt(s.millis, 10)), nil
	}
	return json.Marshal(s.text)
}

func (s *Stamp) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*s = Stamp{}
		return nil
	}
	if b[0] == '"' {
		var text string
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
		*s = Stamp{text: text}
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*s = Stamp{millis: ms}
	return nil
}
