// Package iocli abstracts console input and output of the command-line client.
package iocli

//go:generate moq -out io_mock.go . IO

// IO ввод-вывод консольного клиента
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	Write(p []byte) (n int, err error)

	// Interactive сообщает, можно ли задавать пользователю вопросы
	Interactive() bool
}
