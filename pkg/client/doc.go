// Package client собирает вызов к MRCP серверу из пакетов dialog, media_sdp,
// mrcp, rtp, media и session.
//
// Run читает конфигурацию, занимает SIP и RTP порты, строит SDP offer,
// запускает SIP стек, необязательный HTTP сервер метрик и автомат сессии
// в одной errgroup и возвращает код завершения процесса.
//
// Аргумент грамматики распознавания:
//   - существующий файл передается через DEFINE-GRAMMAR и ссылку session:
//   - builtin:, session:, http(s): уходят как text/uri-list
//   - любой другой текст считается встроенной SRGS грамматикой
//   - пустая строка означает RECOGNIZE без тела
package client
