package domain

type Side string

const (
	SideSelf Side = "self"
	SidePeer Side = "peer"
)

// id плейсхолдеров «печатает» по направлениям
const (
	PlaceholderSelf = "self-typing"
	PlaceholderPeer = "peer-typing"
)

func PlaceholderFor(side Side) string {
	if side == SideSelf {
		return PlaceholderSelf
	}
	return PlaceholderPeer
}

// RenderEvent: всё, что ядро отдаёт в sink.
type RenderEvent interface {
	renderEvent()
}

type TextBubble struct {
	Side    Side
	UserID  UserID
	Name    string
	Payload string
	Time    string
}

type TypingPlaceholder struct {
	Side   Side
	ID     string
	UserID UserID
}

type RemovePlaceholder struct {
	ID string
}

type ActionBanner struct {
	Text string
}

type ReturnHome struct{}

// StatusLine описывает строку статуса в шапке (список онлайн либо "disconnected").
type StatusLine struct {
	Text   string
	Online bool
}

func (TextBubble) renderEvent()        {}
func (TypingPlaceholder) renderEvent() {}
func (RemovePlaceholder) renderEvent() {}
func (ActionBanner) renderEvent()      {}
func (ReturnHome) renderEvent()        {}
func (StatusLine) renderEvent()        {}

// Sink это граница с UI, ядро только отдаёт события.
type Sink interface {
	Emit(ev RenderEvent)
}

type Notifier interface {
	Notify(text string)
}
