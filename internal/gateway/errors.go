package gateway

import "errors"

var (
	// ErrSchemaMismatch ответ биржи не совпал с ожидаемой схемой. Не ретраим:
	// это значит, что API поменялось.
	ErrSchemaMismatch = errors.New("response does not match expected schema")

	// ErrUnauthenticated нет активной identity. Фатально для сессии персонажа.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// RetriableError ошибки, после которых цикл можно повторить.
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable true только для ошибок, которые сами объявили себя ретраебельными.
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// IsFatal ошибки, после которых сессию по персонажу надо останавливать.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrSchemaMismatch)
}

// TransportError сетевая ошибка: соединение, таймаут, 5xx.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) IsRetriable() bool { return true }

func (e *TransportError) Unwrap() error { return e.Err }
