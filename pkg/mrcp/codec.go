package mrcp

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformed сообщение не соответствует грамматике MRCPv2
var ErrMalformed = errors.New("malformed MRCP message")

func malformedf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformed, format, args...)
}

// maxMessageLength ограничение на длину входящего сообщения
const maxMessageLength = 1 << 20

// BuildRequest сериализует запрос. Content-Length добавляется, если есть тело.
// message-length в стартовой строке учитывает все сообщение, включая саму стартовую строку.
func BuildRequest(method string, id uint32, headers Headers, body []byte) []byte {
	return buildWithTail(" "+method+" "+strconv.FormatUint(uint64(id), 10)+"\r\n", headers, body)
}

// messageLength добавляет к base количество цифр самой длины.
func messageLength(base int) int {
	digits := 1
	for {
		total := base + digits
		n := len(strconv.Itoa(total))
		if n == digits {
			return total
		}
		digits = n
	}
}

// ReadMessage читает одно сообщение из потока.
// Длина определяется по message-length из стартовой строки.
func ReadMessage(r *bufio.Reader) (*Message, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "read start line")
	}

	msg, err := parseStartLine(strings.TrimRight(line, "\r\n"))
	if err != nil {
		return nil, err
	}
	if msg.Length < len(line) || msg.Length > maxMessageLength {
		return nil, malformedf("bad message length %d", msg.Length)
	}

	rest := make([]byte, msg.Length-len(line))
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, errors.Wrap(err, "read message")
	}

	var headerPart, body []byte
	if bytes.HasPrefix(rest, []byte("\r\n")) {
		// сообщение без заголовков
		body = rest[2:]
	} else {
		var found bool
		headerPart, body, found = bytes.Cut(rest, []byte("\r\n\r\n"))
		if !found {
			return nil, malformedf("no header terminator")
		}
	}

	for _, hl := range strings.Split(string(headerPart), "\r\n") {
		if hl == "" {
			continue
		}
		name, value, ok := strings.Cut(hl, ":")
		if !ok {
			return nil, malformedf("bad header line %q", hl)
		}
		msg.Headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	if len(body) > 0 {
		msg.Body = body
	}
	return msg, nil
}

// ParseMessage разбирает сообщение целиком из буфера
func ParseMessage(data []byte) (*Message, error) {
	return ReadMessage(bufio.NewReader(bytes.NewReader(data)))
}

func parseStartLine(line string) (*Message, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 || fields[0] != Version {
		return nil, malformedf("bad start line %q", line)
	}
	length, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, malformedf("bad message length %q", fields[1])
	}
	msg := &Message{Length: length}

	switch len(fields) {
	case 4:
		// request-line: version length method request-id
		id, err := parseRequestID(fields[3])
		if err != nil {
			return nil, err
		}
		msg.Kind = KindRequest
		msg.Method = fields[2]
		msg.RequestID = id
	case 5:
		if status, err := strconv.Atoi(fields[3]); err == nil && isDigits(fields[2]) {
			// response-line: version length request-id status-code request-state
			id, err := parseRequestID(fields[2])
			if err != nil {
				return nil, err
			}
			msg.Kind = KindResponse
			msg.RequestID = id
			msg.StatusCode = status
		} else {
			// event-line: version length event-name request-id request-state
			id, err := parseRequestID(fields[3])
			if err != nil {
				return nil, err
			}
			msg.Kind = KindEvent
			msg.EventName = fields[2]
			msg.RequestID = id
		}
		msg.RequestState = fields[4]
	default:
		return nil, malformedf("bad start line %q", line)
	}
	return msg, nil
}

func parseRequestID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, malformedf("bad request id %q", s)
	}
	return uint32(id), nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

// BuildResponse сериализует ответ. Используется тестовыми серверами.
func BuildResponse(id uint32, status int, state string, headers Headers, body []byte) []byte {
	return buildWithTail(" "+strconv.FormatUint(uint64(id), 10)+" "+strconv.Itoa(status)+" "+state+"\r\n", headers, body)
}

// BuildEvent сериализует событие. Используется тестовыми серверами.
func BuildEvent(name string, id uint32, state string, headers Headers, body []byte) []byte {
	return buildWithTail(" "+name+" "+strconv.FormatUint(uint64(id), 10)+" "+state+"\r\n", headers, body)
}

func buildWithTail(tail string, headers Headers, body []byte) []byte {
	var rest bytes.Buffer
	for _, h := range headers {
		if strings.EqualFold(h.Name, HeaderContentLength) {
			continue
		}
		rest.WriteString(h.Name)
		rest.WriteString(": ")
		rest.WriteString(h.Value)
		rest.WriteString("\r\n")
	}
	if len(body) > 0 {
		rest.WriteString(HeaderContentLength + ": " + strconv.Itoa(len(body)) + "\r\n")
	}
	rest.WriteString("\r\n")
	rest.Write(body)

	length := messageLength(len(Version) + 1 + len(tail) + rest.Len())
	return []byte(Version + " " + strconv.Itoa(length) + tail + rest.String())
}
