package mrcp

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequestLength(t *testing.T) {
	tests := []struct {
		name    string
		headers Headers
		body    []byte
	}{
		{"no body", Headers{{HeaderChannelIdentifier, "32AECB23433801@speechrecog"}}, nil},
		{"with body", Headers{{HeaderChannelIdentifier, "x@speechsynth"}, {HeaderContentType, ContentTypeText}}, []byte("Hello world")},
		// длина пересекает границу разряда
		{"long body", Headers{{HeaderChannelIdentifier, "x@speechsynth"}}, bytes.Repeat([]byte("a"), 950)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := BuildRequest(MethodSpeak, 7, tt.headers, tt.body)

			line, _, ok := strings.Cut(string(raw), "\r\n")
			require.True(t, ok)
			fields := strings.Fields(line)
			require.Len(t, fields, 4)
			assert.Equal(t, Version, fields[0])
			assert.Equal(t, strconv.Itoa(len(raw)), fields[1])
			assert.Equal(t, MethodSpeak, fields[2])
			assert.Equal(t, "7", fields[3])

			if len(tt.body) > 0 {
				assert.Contains(t, string(raw), "Content-Length: "+strconv.Itoa(len(tt.body))+"\r\n")
				assert.True(t, bytes.HasSuffix(raw, append([]byte("\r\n\r\n"), tt.body...)))
			} else {
				assert.NotContains(t, string(raw), HeaderContentLength)
				assert.True(t, bytes.HasSuffix(raw, []byte("\r\n\r\n")))
			}
		})
	}
}

func TestBuildRequestParses(t *testing.T) {
	raw := BuildRequest(MethodRecognize, 2, Headers{
		{HeaderChannelIdentifier, "abc@speechrecog"},
		{HeaderContentType, ContentTypeURIList},
	}, []byte("session:grammar-1@mrcp_client"))

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, KindRequest, msg.Kind)
	assert.Equal(t, MethodRecognize, msg.Method)
	assert.Equal(t, uint32(2), msg.RequestID)
	assert.Equal(t, len(raw), msg.Length)
	assert.Equal(t, "abc@speechrecog", msg.Headers.Get("channel-identifier"))
	assert.Equal(t, "session:grammar-1@mrcp_client", string(msg.Body))
}

func TestParseResponse(t *testing.T) {
	raw := BuildResponse(1, 200, StateInProgress, Headers{{HeaderChannelIdentifier, "abc@speechrecog"}}, nil)
	msg, err := ParseMessage(raw)
	require.NoError(t, err)

	assert.Equal(t, KindResponse, msg.Kind)
	assert.Equal(t, uint32(1), msg.RequestID)
	assert.Equal(t, 200, msg.StatusCode)
	assert.Equal(t, StateInProgress, msg.RequestState)
	assert.True(t, msg.IsSuccess())
	assert.Nil(t, msg.Body)
}

func TestParseEventWithBody(t *testing.T) {
	nlsml := `<?xml version="1.0"?><result><interpretation confidence="0.9"><input>ohayou</input></interpretation></result>`
	raw := BuildEvent(EventRecognitionComplete, 1, StateComplete, Headers{
		{HeaderChannelIdentifier, "abc@speechrecog"},
		{HeaderCompletionCause, "000 success"},
		{HeaderContentType, ContentTypeNLSML},
	}, []byte(nlsml))

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, KindEvent, msg.Kind)
	assert.Equal(t, EventRecognitionComplete, msg.EventName)
	assert.Equal(t, EventRecognitionComplete, msg.Name())
	assert.Equal(t, uint32(1), msg.RequestID)
	assert.Equal(t, StateComplete, msg.RequestState)
	assert.Equal(t, "000 success", msg.Headers.Get(HeaderCompletionCause))
	assert.Equal(t, nlsml, string(msg.Body))
	assert.False(t, msg.IsSuccess())
}

func TestReadMessageStream(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(BuildResponse(1, 200, StateInProgress, Headers{{HeaderChannelIdentifier, "c"}}, nil))
	stream.Write(BuildEvent(EventStartOfInput, 1, StateInProgress, Headers{{HeaderChannelIdentifier, "c"}}, nil))
	stream.Write(BuildEvent(EventRecognitionComplete, 1, StateComplete, nil, []byte("result")))

	r := bufio.NewReader(&stream)
	var names []string
	for i := 0; i < 3; i++ {
		msg, err := ReadMessage(r)
		require.NoError(t, err)
		names = append(names, msg.Kind.String()+":"+msg.Name())
	}
	assert.Equal(t, []string{"response:", "event:START-OF-INPUT", "event:RECOGNITION-COMPLETE"}, names)

	_, err := ReadMessage(r)
	assert.Error(t, err)
}

func TestParseMalformed(t *testing.T) {
	tests := []string{
		"HTTP/1.1 200 OK\r\n\r\n",
		"MRCP/2.0 abc SPEAK 1\r\n\r\n",
		"MRCP/2.0 30 1 200 COMPLETE EXTRA\r\n\r\n",
		"MRCP/2.0 5 SPEAK 1\r\n\r\n",
		"MRCP/2.0 40 SPEAK x\r\n\r\n",
	}
	for _, raw := range tests {
		_, err := ParseMessage([]byte(raw))
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestParseHeaderLines(t *testing.T) {
	h, err := ParseHeaderLines(`Speech-Complete-Timeout: 800\nNo-Input-Timeout: 5000`)
	require.NoError(t, err)
	assert.Equal(t, Headers{
		{"Speech-Complete-Timeout", "800"},
		{"No-Input-Timeout", "5000"},
	}, h)

	h, err = ParseHeaderLines("A: 1\n\nB: 2\n")
	require.NoError(t, err)
	assert.Len(t, h, 2)

	_, err = ParseHeaderLines("no colon here")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestHeadersMerge(t *testing.T) {
	base := Headers{{HeaderChannelIdentifier, "c"}, {HeaderSpeechLanguage, "en-US"}}
	merged := base.Merge(Headers{{"speech-language", "ja-JP"}, {"Vendor-Specific-Parameters", "x=1"}})

	assert.Equal(t, "en-US", merged.Get(HeaderSpeechLanguage))
	assert.Equal(t, "x=1", merged.Get("vendor-specific-parameters"))
	assert.Len(t, base, 2)
}
