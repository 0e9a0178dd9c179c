package tui

type (
	// RefreshMsg: лента изменилась, перерисовать
	RefreshMsg struct{}

	// DoneMsg: цикл сессии завершился
	DoneMsg struct{ Err error }

	// ErrorMsg: ошибка отправки или выхода из канала
	ErrorMsg error
)
