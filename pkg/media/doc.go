// Package media реализует аудио тракт клиента речевых ресурсов.
//
// # Состав
//
//   - G.711 μ-law кодек (LinearToMulaw, MulawToLinear, EncodeMulaw, DecodeMulaw)
//   - AudioProcessor - покадровое кодирование/декодирование PCMU со статистикой
//   - Bridge - отправка кадров по 160 байт каждые 20 мс и прием входящих payload
//   - OpenSource - источники исходящего аудио (сырой μ-law, WAV с передискретизацией)
//   - WAVRecorder - запись принятого аудио в WAV
//
// # Пример
//
//	bridge := media.NewBridge(media.DefaultBridgeConfig(), rtpSession, nil)
//	src, _ := media.OpenSource("utterance.wav")
//	bridge.StartSending(src)
//	defer bridge.Stop()
package media
