package media_sdp

import (
	"fmt"

	"github.com/pion/sdp/v3"
)

// Resource тип речевого ресурса MRCPv2
type Resource string

const (
	ResourceSpeechSynth Resource = "speechsynth"
	ResourceSpeechRecog Resource = "speechrecog"
)

// Valid проверяет, что ресурс известен
func (r Resource) Valid() bool {
	return r == ResourceSpeechSynth || r == ResourceSpeechRecog
}

// AudioDirection направление аудио со стороны клиента:
// синтез только принимает, распознавание только отправляет.
func (r Resource) AudioDirection() string {
	if r == ResourceSpeechSynth {
		return "recvonly"
	}
	return "sendonly"
}

const (
	originUsername       = "mrcp_client"
	originSessionID      = 5772550679930491611
	originSessionVersion = 4608916746797952899

	// MRCPProtocol протокол медиа строки управляющего канала
	MRCPProtocol = "TCP/MRCPv2"
	// RTPProtocol протокол аудио медиа строки
	RTPProtocol = "RTP/AVP"
)

// BuildOfferDescription собирает offer: управляющий канал MRCPv2 и одна аудио строка PCMU/8000.
func BuildOfferDescription(resource Resource, localIP string, rtpPort int) (*sdp.SessionDescription, error) {
	if !resource.Valid() {
		return nil, newNegotiationError(ErrorCodeSDPGeneration, fmt.Sprintf("неизвестный ресурс %q", resource))
	}
	if localIP == "" {
		return nil, newNegotiationError(ErrorCodeSDPGeneration, "не задан локальный IP")
	}
	if rtpPort <= 0 || rtpPort > 65535 {
		return nil, newNegotiationError(ErrorCodeSDPGeneration, fmt.Sprintf("некорректный RTP порт %d", rtpPort))
	}

	control := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   "application",
			Port:    sdp.RangedPort{Value: 9},
			Protos:  []string{"TCP", "MRCPv2"},
			Formats: []string{"1"},
		},
		Attributes: []sdp.Attribute{
			{Key: "setup", Value: "active"},
			{Key: "connection", Value: "new"},
			{Key: "resource", Value: string(resource)},
			{Key: "cmid", Value: "1"},
		},
	}

	audio := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   "audio",
			Port:    sdp.RangedPort{Value: rtpPort},
			Protos:  []string{"RTP", "AVP"},
			Formats: []string{"0"},
		},
		Attributes: []sdp.Attribute{
			{Key: "rtpmap", Value: "0 PCMU/8000"},
			{Key: resource.AudioDirection()},
			{Key: "mid", Value: "1"},
		},
	}

	return &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       originUsername,
			SessionID:      originSessionID,
			SessionVersion: originSessionVersion,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: localIP,
		},
		SessionName: "-",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: localIP},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
		MediaDescriptions: []*sdp.MediaDescription{control, audio},
	}, nil
}

// BuildOffer возвращает текст offer. Каждая строка завершается CRLF.
func BuildOffer(resource Resource, localIP string, rtpPort int) ([]byte, error) {
	desc, err := BuildOfferDescription(resource, localIP, rtpPort)
	if err != nil {
		return nil, err
	}
	body, err := desc.Marshal()
	if err != nil {
		return nil, wrapNegotiationError(ErrorCodeSDPGeneration, "ошибка сериализации SDP", err)
	}
	return body, nil
}
