// Package session — жизненный цикл сессий агентов.
//
// Manager хранит сессии в памяти, присваивает монотонные номера
// сообщениям и публикует события в шину. Персистентность — через
// порт SessionRepository (реализация в internal/repo).
package session
