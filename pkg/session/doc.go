// Package session автомат сессии клиента MRCPv2.
//
// Machine чистый переход (состояние, событие) -> (состояние, действия)
// на базе looplab/fsm. Session выполняет действия: INVITE и BYE через
// Signaling, управляющее соединение через ControlDialer, RTP через Media.
// Все события участников проходят через Post и обрабатываются одной
// горутиной Run, поэтому автомат и коррелятор MRCP не требуют блокировок.
//
// Успешный итог TERMINATED с кодом 0, любая ошибка или истечение срока
// переводят сессию в FAILED с кодом 1 без BYE.
package session
