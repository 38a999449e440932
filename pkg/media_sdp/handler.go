package media_sdp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pion/sdp/v3"
)

// Media плоское представление одной медиа строки answer
type Media struct {
	Type       string
	Port       int
	Protocol   string
	Payloads   []string
	Connection string // IP из c= уровня медиа, если есть
	Resource   string
	Setup      string
	ConnMode   string // a=connection
	Direction  string
	Channel    string
}

// Description разобранный answer
type Description struct {
	ConnectionIP string
	Media        []Media
}

// Answer результат согласования: адреса сервера и канал MRCP.
type Answer struct {
	RemoteIP       string
	RemoteMRCPPort int
	Channel        string
	RemoteRTPIP    string
	RemoteRTPPort  int
}

// ParseAnswer разбирает текст answer. Строки могут завершаться LF, CRLF на
// последней строке необязателен, отсутствующие v=, o=, s= и t= подставляются.
func ParseAnswer(body []byte) (*Description, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal(normalizeAnswer(body)); err != nil {
		return nil, wrapNegotiationError(ErrorCodeSDPParsing, "ошибка разбора SDP answer", err)
	}
	return describe(&desc), nil
}

// sessionOrder порядок строк уровня сессии по RFC 4566
const sessionOrder = "vosiuepcbtrzka"

// normalizeAnswer приводит answer к виду, который принимает строгий разборщик:
// пустые строки отбрасываются, уровень сессии упорядочивается и дополняется.
func normalizeAnswer(body []byte) []byte {
	var session, media []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 2 || line[1] != '=' {
			continue
		}
		if media != nil || line[0] == 'm' {
			media = append(media, line)
			continue
		}
		if strings.IndexByte(sessionOrder, line[0]) < 0 {
			continue
		}
		session = append(session, line)
	}

	present := make(map[byte]bool, len(session))
	for _, line := range session {
		present[line[0]] = true
	}
	defaults := []string{"v=0", "o=- 0 0 IN IP4 0.0.0.0", "s=-", "t=0 0"}
	for _, line := range defaults {
		if !present[line[0]] {
			session = append(session, line)
		}
	}
	sort.SliceStable(session, func(i, j int) bool {
		return strings.IndexByte(sessionOrder, session[i][0]) < strings.IndexByte(sessionOrder, session[j][0])
	})

	lines := append(session, media...)
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func describe(desc *sdp.SessionDescription) *Description {
	out := &Description{}
	if desc.ConnectionInformation != nil && desc.ConnectionInformation.Address != nil {
		out.ConnectionIP = desc.ConnectionInformation.Address.Address
	}

	for _, md := range desc.MediaDescriptions {
		m := Media{
			Type:     md.MediaName.Media,
			Port:     md.MediaName.Port.Value,
			Protocol: strings.Join(md.MediaName.Protos, "/"),
			Payloads: append([]string(nil), md.MediaName.Formats...),
		}
		if md.ConnectionInformation != nil && md.ConnectionInformation.Address != nil {
			m.Connection = md.ConnectionInformation.Address.Address
		}
		for _, attr := range md.Attributes {
			switch attr.Key {
			case "resource":
				m.Resource = attr.Value
			case "setup":
				m.Setup = attr.Value
			case "connection":
				m.ConnMode = attr.Value
			case "channel":
				m.Channel = attr.Value
			case "sendonly", "recvonly", "sendrecv", "inactive":
				m.Direction = attr.Key
			}
		}
		out.Media = append(out.Media, m)
	}
	return out
}

// MatchAnswer ищет управляющий канал и аудио строку в любом порядке.
// Отсутствие любого обязательного поля дает *NegotiationError, частичный результат не возвращается.
func MatchAnswer(desc *Description) (Answer, error) {
	if desc == nil {
		return Answer{}, newNegotiationError(ErrorCodeSDPParsing, "пустой answer")
	}
	if len(desc.Media) != 2 {
		return Answer{}, newNegotiationError(ErrorCodeSDPParsing,
			fmt.Sprintf("ожидается две медиа строки, получено %d", len(desc.Media)))
	}

	var (
		control *Media
		audio   *Media
	)
	for i := range desc.Media {
		m := &desc.Media[i]
		switch {
		case control == nil && isControlMedia(m):
			control = m
		case audio == nil && m.Type == "audio" && m.Protocol == RTPProtocol:
			audio = m
		}
	}

	if control == nil {
		return Answer{}, newNegotiationError(ErrorCodeNoControlMedia, "нет медиа строки application TCP/MRCPv2 1")
	}
	if control.Channel == "" {
		return Answer{}, newNegotiationError(ErrorCodeNoChannel, "нет атрибута channel в управляющей медиа строке")
	}
	if audio == nil {
		return Answer{}, newNegotiationError(ErrorCodeNoAudioMedia, "нет медиа строки audio RTP/AVP")
	}

	remoteIP := firstNonEmpty(control.Connection, desc.ConnectionIP)
	rtpIP := firstNonEmpty(audio.Connection, desc.ConnectionIP)
	if remoteIP == "" || rtpIP == "" {
		return Answer{}, newNegotiationError(ErrorCodeNoConnection, "нет адреса соединения")
	}

	return Answer{
		RemoteIP:       remoteIP,
		RemoteMRCPPort: control.Port,
		Channel:        control.Channel,
		RemoteRTPIP:    rtpIP,
		RemoteRTPPort:  audio.Port,
	}, nil
}

func isControlMedia(m *Media) bool {
	return m.Type == "application" &&
		m.Protocol == MRCPProtocol &&
		len(m.Payloads) == 1 && m.Payloads[0] == "1"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Negotiate разбирает и сопоставляет answer.
func Negotiate(body []byte) (Answer, error) {
	desc, err := ParseAnswer(body)
	if err != nil {
		return Answer{}, err
	}
	return MatchAnswer(desc)
}
