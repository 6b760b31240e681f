package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Статусы проверки домашней работы.
const (
	StatusApproved  = "approved"
	StatusReviewing = "reviewing"
	StatusRejected  = "rejected"
)

// Ключи ответа API.
const (
	KeyHomeworks    = "homeworks"
	KeyCurrentDate  = "current_date"
	KeyError        = "error"
	KeyCode         = "code"
	KeyHomeworkName = "homework_name"
	KeyStatus       = "status"
	KeyID           = "id"
	KeyDateUpdated  = "date_updated"
	KeyComment      = "reviewer_comment"
	KeyLessonName   = "lesson_name"
)

// Verdicts сопоставляет статус работы и текст вердикта. Таблица не меняется после инициализации.
var Verdicts = map[string]string{
	StatusApproved:  "Работа проверена: ревьюеру всё понравилось. Ура!",
	StatusReviewing: "Работа взята на проверку ревьюером.",
	StatusRejected:  "Работа проверена: у ревьюера есть замечания.",
}

// APIResponse описывает декодированный ответ сервиса проверки.
type APIResponse map[string]any

// CurrentDate возвращает курсор, присланный сервером, если он есть и является числом.
func (r APIResponse) CurrentDate() (int64, bool) {
	raw, ok := r[KeyCurrentDate]
	if !ok || raw == nil {
		return 0, false
	}
	return toInt64(raw)
}

// HomeworkRecord описывает одну запись о домашней работе из ответа API.
type HomeworkRecord map[string]any

// Name возвращает название работы.
func (h HomeworkRecord) Name() (string, bool) {
	raw, ok := h[KeyHomeworkName]
	if !ok || raw == nil {
		return "", false
	}
	return stringify(raw), true
}

// Status возвращает статус проверки. Нестроковый статус считается отсутствующим в словаре.
func (h HomeworkRecord) Status() (string, bool) {
	raw, ok := h[KeyStatus]
	if !ok || raw == nil {
		return "", false
	}
	return stringify(raw), true
}

// Field возвращает строковое значение произвольного поля или пустую строку.
func (h HomeworkRecord) Field(key string) string {
	raw, ok := h[key]
	if !ok || raw == nil {
		return ""
	}
	return stringify(raw)
}

// DedupKey возвращает ключ, однозначно описывающий изменение статуса.
// Без date_updated повторный переход в тот же статус неотличим от уже
// отправленного, поэтому ключ не строится и ok=false.
func (h HomeworkRecord) DedupKey() (key string, ok bool) {
	updated := h.Field(KeyDateUpdated)
	if updated == "" {
		return "", false
	}
	id := h.Field(KeyID)
	if id == "" {
		id = h.Field(KeyHomeworkName)
	}
	return fmt.Sprintf("%s:%s:%s", id, h.Field(KeyStatus), updated), true
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, true
		}
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case float64:
		return int64(val), true
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
