package posapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrDecode — ответ POS не удалось разобрать.
var ErrDecode = errors.New("failed to decode POS response")

// StatusError — POS ответил не-2xx кодом.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

// StatusCode возвращает HTTP-код ответа (для retry.Classify).
func (e *StatusError) StatusCode() int {
	return e.Code
}

// NotFound возвращает true для 404.
func (e *StatusError) NotFound() bool {
	return e.Code == http.StatusNotFound
}

// alreadyFinal возвращает true, если сервер сообщил, что заказ уже закрыт или отменён.
func (e *StatusError) alreadyFinal() bool {
	if e.Code == http.StatusConflict {
		return true
	}
	if e.Code < 400 || e.Code >= 500 {
		return false
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "already closed") ||
		strings.Contains(msg, "already cancelled") ||
		strings.Contains(msg, "already canceled")
}

// TransportError — запрос не дошёл до POS или ответ не был получен.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transient всегда true: сетевой сбой имеет смысл повторить.
func (e *TransportError) Transient() bool {
	return true
}

// IsAlreadyFinal проверяет, что ошибка означает «заказ уже закрыт/отменён».
func IsAlreadyFinal(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.alreadyFinal()
}
