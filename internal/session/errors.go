package session

import "errors"

// Ошибки менеджера сессий.
var (
	// ErrEmptyName — сессия без имени.
	ErrEmptyName = errors.New("session name is empty")

	// ErrSessionNotFound — сессия не найдена.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionTerminal — операция над завершённой сессией.
	ErrSessionTerminal = errors.New("session is in terminal status")

	// ErrAgentNotInSession — сообщение от агента, не входящего
	// в участники сессии.
	ErrAgentNotInSession = errors.New("agent is not a session participant")

	// ErrEmptyContent — сообщение без содержимого.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrNotTerminalStatus — в EndSession передан нефинальный статус.
	ErrNotTerminalStatus = errors.New("end status must be terminal")
)
