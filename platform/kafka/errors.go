package kafka

import "errors"

// permanentError помечает ошибку обработчика как постоянную: повторная доставка
// того же сообщения даст тот же результат (схема не совпала, сущность не найдена,
// бизнес-отказ). Такие сообщения уходят в DLQ и коммитятся, чтобы не зациклить
// консьюмер на poison message. Все остальные ошибки считаются временными —
// сообщение остаётся незакоммиченным и будет доставлено повторно.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent оборачивает ошибку как постоянную
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent сообщает, помечена ли ошибка как постоянная
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
