// Package mrcp реализует клиентскую часть MRCPv2 (RFC 6787), необходимую для управления
// речевыми ресурсами: сериализацию запросов, разбор ответов и событий, TCP соединение
// управляющего канала и сопоставление ответов с запросами по request-id.
//
// Каждый метод описывается своей структурой параметров (SpeakParams, RecognizeParams,
// DefineGrammarParams) с фиксированным набором заголовков.
package mrcp
