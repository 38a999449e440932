// Команда speechsynth_client синтезирует текст на MRCPv2 сервере.
//
//	speechsynth_client server_host server_port [language] [voice] [text]
//
// Аудио воспроизводится в stdout как PCM16LE 8 кГц моно, если stdout
// перенаправлен, и сохраняется в WAV с флагом -w.
package main

import (
	"os"

	"github.com/arzzra/mrcp_client/pkg/client"
	"github.com/arzzra/mrcp_client/pkg/media_sdp"
)

func main() {
	os.Exit(client.Execute(media_sdp.ResourceSpeechSynth, client.CommandSpec{
		Use:   "speechsynth_client server_host server_port [language] [voice] [text]",
		Short: "Synthesize text on an MRCPv2 speech server",
		Long: `Opens a SIP session to the server, sends SPEAK on the speechsynth channel
and receives the synthesized audio over RTP (PCMU).

Examples:
  speechsynth_client 10.0.0.5 8060 en-US en-US-Wavenet-E "Hello world" | aplay -f S16_LE -r 8000
  speechsynth_client -S -w out.wav 10.0.0.5 8060 ja-JP ja-JP-Wavenet-A "こんにちは"`,
		MaxArgs: 3,
		Args: func(opts *client.Options, args []string) {
			if len(args) > 0 {
				opts.Language = args[0]
			}
			if len(args) > 1 {
				opts.Voice = args[1]
			}
			if len(args) > 2 {
				opts.Text = args[2]
			}
		},
	}))
}
