package iocli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio ввод-вывод поверх произвольных потоков (обычно os.Stdin/os.Stdout)
type Stdio struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

// NewStdio создает IO; nil потоки заменяются на os.Stdin и os.Stdout
func NewStdio(in io.Reader, out io.Writer) IO {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Stdio{in: in, reader: bufio.NewReader(in), out: out}
}

func (s *Stdio) Println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// ReadInput печатает приглашение и читает строку. Последняя строка без
// перевода строки тоже считается вводом.
func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	input, err := s.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// Interactive true, если ввод идет с терминала
func (s *Stdio) Interactive() bool {
	f, ok := s.in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
