package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/arzzra/mrcp_client/pkg/config"
	"github.com/arzzra/mrcp_client/pkg/dialog"
	"github.com/arzzra/mrcp_client/pkg/media_sdp"
	"github.com/arzzra/mrcp_client/pkg/mrcp"
)

// grammarSeq номер грамматики в Content-ID
var grammarSeq atomic.Uint32

// uriSchemes схемы, которые передаются серверу ссылкой
var uriSchemes = []string{"builtin:", "session:", "http://", "https://"}

// GrammarKind способ передачи грамматики
type GrammarKind int

const (
	// GrammarNone RECOGNIZE без тела
	GrammarNone GrammarKind = iota
	// GrammarFile DEFINE-GRAMMAR из файла, затем RECOGNIZE со ссылкой session:
	GrammarFile
	// GrammarURI RECOGNIZE с text/uri-list
	GrammarURI
	// GrammarInline RECOGNIZE с телом грамматики
	GrammarInline
)

// ClassifyGrammar определяет способ передачи аргумента грамматики.
// Существующий файл важнее совпадения со схемой URI.
func ClassifyGrammar(arg string) GrammarKind {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return GrammarNone
	}
	if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
		return GrammarFile
	}
	lower := strings.ToLower(arg)
	for _, scheme := range uriSchemes {
		if strings.HasPrefix(lower, scheme) {
			return GrammarURI
		}
	}
	return GrammarInline
}

// grammarContentType тип содержимого файла грамматики по расширению
func grammarContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gram", ".abnf":
		return "application/srgs"
	default:
		return mrcp.ContentTypeSRGS
	}
}

// buildCommands формирует DEFINE-GRAMMAR (может быть nil) и основную команду
func buildCommands(resource media_sdp.Resource, opts Options, recog config.RecognizerConfig, extra mrcp.Headers) (mrcp.Command, mrcp.Command, error) {
	if resource == media_sdp.ResourceSpeechSynth {
		return nil, mrcp.SpeakParams{
			Language: opts.Language,
			Voice:    opts.Voice,
			Text:     opts.Text,
			Extra:    extra,
		}, nil
	}

	recognize := mrcp.RecognizeParams{
		Language:       opts.Language,
		NoInputTimeout: recog.NoInputTimeout,
		Extra:          extra,
	}
	if recog.ConfidenceThreshold != nil {
		recognize.ConfidenceThreshold = strconv.FormatFloat(*recog.ConfidenceThreshold, 'f', -1, 64)
	}
	arg := strings.TrimSpace(opts.Grammar)

	switch ClassifyGrammar(arg) {
	case GrammarFile:
		body, err := os.ReadFile(arg)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "read grammar %s", arg)
		}
		contentID := fmt.Sprintf("grammar-%d@%s", grammarSeq.Add(1), dialog.DefaultUser)
		define := mrcp.DefineGrammarParams{
			ContentType: grammarContentType(arg),
			ContentID:   contentID,
			Language:    opts.Language,
			Grammar:     body,
			Extra:       extra,
		}
		recognize.ContentType = mrcp.ContentTypeURIList
		recognize.Grammar = []byte(mrcp.SessionGrammarURI(contentID))
		return define, recognize, nil
	case GrammarURI:
		recognize.ContentType = mrcp.ContentTypeURIList
		recognize.Grammar = []byte(arg)
	case GrammarInline:
		recognize.ContentType = mrcp.ContentTypeSRGS
		recognize.Grammar = []byte(arg)
	}
	return nil, recognize, nil
}
