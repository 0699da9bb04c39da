package invoker

import "errors"

// Ошибки реестра агентов.
var (
	// ErrAgentNotRegistered — агент не найден в реестре.
	ErrAgentNotRegistered = errors.New("agent not registered")

	// ErrInvalidEndpoint — некорректное описание endpoint'а.
	ErrInvalidEndpoint = errors.New("invalid agent endpoint")
)
