package render

import (
	"fmt"
	"io"
	"log/slog"
)

// Bell: уведомление звонком терминала.
type Bell struct {
	w io.Writer
}

func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

func (b *Bell) Notify(text string) {
	slog.Debug("notify", "text", text)
	if b.w == nil {
		return
	}
	if _, err := fmt.Fprint(b.w, "\a"); err != nil {
		slog.Debug("notify: bell", "err", err)
	}
}
