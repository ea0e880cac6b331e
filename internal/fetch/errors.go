package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted совпадает с любым *ExhaustedError.
	ErrExhausted = errors.New("fetch attempts exhausted")

	// ErrDecode совпадает с любым *DecodeError.
	ErrDecode = errors.New("payload decode failed")
)

// ExhaustedError возвращается, когда все попытки запроса провалились.
type ExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s: %d attempts failed: %v", e.URL, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// DecodeError возвращается, когда ответ пришел, но разобрать его не удалось.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// IsUpstream сообщает, что ошибка возникла при обращении к upstream.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrExhausted) || errors.Is(err, ErrDecode)
}
