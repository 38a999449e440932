// Package media_sdp строит SDP offer клиента MRCPv2 и сопоставляет answer сервера.
//
// Offer содержит две медиа строки: управляющий канал (application, TCP/MRCPv2) с атрибутом
// resource и аудио (RTP/AVP, PCMU/8000). Направление аудио зависит от ресурса: recvonly для
// синтеза, sendonly для распознавания.
//
// Из answer извлекаются адрес и порт управляющего канала, идентификатор канала и адрес RTP.
// Порядок медиа строк в answer не важен.
package media_sdp
