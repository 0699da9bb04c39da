// Package bus реализует внутрипроцессную шину событий.
//
// Шина развязывает ядро оркестрации от наблюдателей: оркестратор
// и менеджер сессий публикуют доменные события, а транспорт,
// метрики и логирование подписываются на закрытый набор типов
// из internal/domain, не зная друг о друге.
package bus
