package domain

import "errors"

var (
	// ErrConnection возвращается, если API недоступен на транспортном уровне.
	ErrConnection = errors.New("ошибка подключения к API")
	// ErrStatusCode возвращается, если API ответил кодом, отличным от 200.
	ErrStatusCode = errors.New("неожиданный код ответа API")
	// ErrResponse возвращается, если сервис отказал в обслуживании при коде 200.
	ErrResponse = errors.New("отказ от обслуживания")
	// ErrTypeMismatch возвращается, если ответ API имеет неверную структуру.
	ErrTypeMismatch = errors.New("неверный тип данных в ответе")
	// ErrMissingKey возвращается, если в ответе нет обязательного ключа.
	ErrMissingKey = errors.New("отсутствует обязательный ключ")
	// ErrUnknownStatus возвращается для статуса, которого нет в словаре вердиктов.
	ErrUnknownStatus = errors.New("неизвестный статус")
	// ErrSendMessage возвращается, если сообщение не удалось доставить.
	ErrSendMessage = errors.New("ошибка при отправке сообщения")
	// ErrDuplicate возвращается кэшем, если уведомление уже было отправлено.
	ErrDuplicate = errors.New("уведомление уже отправлено")
	// ErrToken возвращается, если не заданы обязательные переменные окружения.
	ErrToken = errors.New("ошибка в токенах")
)

// ErrorKind возвращает короткое имя класса ошибки для метрик и логов.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrStatusCode):
		return "status_code"
	case errors.Is(err, ErrResponse):
		return "response"
	case errors.Is(err, ErrTypeMismatch), errors.Is(err, ErrMissingKey):
		return "validation"
	case errors.Is(err, ErrUnknownStatus):
		return "unknown_status"
	case errors.Is(err, ErrSendMessage):
		return "send_message"
	case errors.Is(err, ErrToken):
		return "token"
	default:
		return "other"
	}
}
