package mrcp

import (
	"strconv"
	"time"
)

// Command параметры одного MRCP метода.
// Render возвращает фиксированный набор заголовков метода и тело.
type Command interface {
	Method() string
	Render(channel string) (Headers, []byte)
}

// Типы содержимого
const (
	ContentTypeText    = "text/plain"
	ContentTypeSSML    = "application/ssml+xml"
	ContentTypeSRGS    = "application/srgs+xml"
	ContentTypeURIList = "text/uri-list"
	ContentTypeNLSML   = "application/nlsml+xml"
)

// SpeakParams параметры SPEAK
type SpeakParams struct {
	Language    string
	Voice       string
	ContentType string // text/plain по умолчанию
	Text        string
	Extra       Headers
}

func (p SpeakParams) Method() string { return MethodSpeak }

func (p SpeakParams) Render(channel string) (Headers, []byte) {
	contentType := p.ContentType
	if contentType == "" {
		contentType = ContentTypeText
	}
	h := Headers{
		{HeaderChannelIdentifier, channel},
		{HeaderContentType, contentType},
	}
	if p.Language != "" {
		h.Add(HeaderSpeechLanguage, p.Language)
	}
	if p.Voice != "" {
		h.Add(HeaderVoiceName, p.Voice)
	}
	return h.Merge(p.Extra), []byte(p.Text)
}

// RecognizeParams параметры RECOGNIZE.
// Grammar может быть пустым: сервер использует грамматику по умолчанию.
type RecognizeParams struct {
	Language            string
	ContentType         string
	Grammar             []byte
	NoInputTimeout      time.Duration
	ConfidenceThreshold string
	Extra               Headers
}

func (p RecognizeParams) Method() string { return MethodRecognize }

func (p RecognizeParams) Render(channel string) (Headers, []byte) {
	h := Headers{{HeaderChannelIdentifier, channel}}
	if p.Language != "" {
		h.Add(HeaderSpeechLanguage, p.Language)
	}
	if p.NoInputTimeout > 0 {
		h.Add(HeaderNoInputTimeout, strconv.FormatInt(p.NoInputTimeout.Milliseconds(), 10))
	}
	if p.ConfidenceThreshold != "" {
		h.Add(HeaderConfidence, p.ConfidenceThreshold)
	}
	if len(p.Grammar) > 0 {
		contentType := p.ContentType
		if contentType == "" {
			contentType = ContentTypeSRGS
		}
		h.Add(HeaderContentType, contentType)
	}
	return h.Merge(p.Extra), p.Grammar
}

// DefineGrammarParams параметры DEFINE-GRAMMAR
type DefineGrammarParams struct {
	ContentType string
	ContentID   string
	Language    string
	Grammar     []byte
	Extra       Headers
}

func (p DefineGrammarParams) Method() string { return MethodDefineGrammar }

func (p DefineGrammarParams) Render(channel string) (Headers, []byte) {
	contentType := p.ContentType
	if contentType == "" {
		contentType = ContentTypeSRGS
	}
	h := Headers{
		{HeaderChannelIdentifier, channel},
		{HeaderContentType, contentType},
		{HeaderContentID, p.ContentID},
	}
	if p.Language != "" {
		h.Add(HeaderSpeechLanguage, p.Language)
	}
	return h.Merge(p.Extra), p.Grammar
}

// SessionGrammarURI ссылка на грамматику, определенную через DEFINE-GRAMMAR
func SessionGrammarURI(contentID string) string {
	return "session:" + contentID
}
