// Команда speechrecog_client распознает аудио файл на MRCPv2 сервере.
//
//	speechrecog_client server_host server_port [language] [audio_file] [grammar]
//
// Аудио файл: WAV любой частоты или сырой μ-law 8 кГц. Без файла
// отправляется тишина. Результат печатается в stdout.
package main

import (
	"os"

	"github.com/arzzra/mrcp_client/pkg/client"
	"github.com/arzzra/mrcp_client/pkg/media_sdp"
)

func main() {
	os.Exit(client.Execute(media_sdp.ResourceSpeechRecog, client.CommandSpec{
		Use:   "speechrecog_client server_host server_port [language] [audio_file] [grammar]",
		Short: "Recognize an audio file on an MRCPv2 speech server",
		Long: `Opens a SIP session to the server, sends RECOGNIZE on the speechrecog channel
and streams the audio file over RTP (PCMU). The grammar argument may be a file
(sent with DEFINE-GRAMMAR), a builtin:/session:/http(s): URI or inline SRGS.

Examples:
  speechrecog_client 10.0.0.5 8060 ja-JP hello.wav
  speechrecog_client -t 20s 10.0.0.5 8060 en-US digits.ulaw builtin:grammar/digits`,
		MaxArgs: 3,
		Args: func(opts *client.Options, args []string) {
			if len(args) > 0 {
				opts.Language = args[0]
			}
			if len(args) > 1 {
				opts.AudioFile = args[1]
			}
			if len(args) > 2 {
				opts.Grammar = args[2]
			}
		},
	}))
}
