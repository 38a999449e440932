// Package rtp RTP конечная точка аудио потока клиента.
//
// Пакет привязывает UDP сокет из списка кандидатов (AllocateUDP),
// упаковывает кадры G.711 в RTP пакеты (Session.SendPayload) и доставляет
// payload входящих пакетов через OnPayload. Невалидные пакеты отбрасываются,
// отказ сокета передается в OnError один раз.
package rtp
