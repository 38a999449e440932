// Package dialog реализует исходящий SIP диалог клиента MRCPv2 поверх sipgo.
//
// Stack обслуживает привязанный UDP сокет и создает единственный Dialog.
// Dialog отправляет INVITE с SDP offer, подтверждает первый 2xx запросом ACK
// на Contact из ответа и завершает вызов запросом BYE. Ответы транзакций
// доставляются асинхронно через ResponseFunc.
//
// Входящие запросы:
//
//	BYE в установленном диалоге -> 200 OK и обработчик OnRemoteBye
//	BYE вне диалога             -> 481
//	ACK                         -> игнорируется
//	INVITE и прочие методы      -> 405
package dialog
