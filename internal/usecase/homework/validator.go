package homework

import (
	"fmt"

	"homework-bot/internal/domain"
)

// CheckResponse проверяет структуру ответа API и возвращает список работ.
func CheckResponse(body any) ([]domain.HomeworkRecord, error) {
	response, ok := asMap(body)
	if !ok {
		return nil, fmt.Errorf("%w: ответ API не является словарём, получен %T", domain.ErrTypeMismatch, body)
	}
	raw, ok := response[domain.KeyHomeworks]
	if !ok {
		return nil, fmt.Errorf("%w: в ответе нет ключа %s", domain.ErrMissingKey, domain.KeyHomeworks)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: под ключом %s пришёл %T вместо списка", domain.ErrTypeMismatch, domain.KeyHomeworks, raw)
	}
	records := make([]domain.HomeworkRecord, 0, len(list))
	for i, item := range list {
		record, ok := asMap(item)
		if !ok {
			return nil, fmt.Errorf("%w: элемент %d списка %s не является словарём", domain.ErrTypeMismatch, i, domain.KeyHomeworks)
		}
		records = append(records, domain.HomeworkRecord(record))
	}
	return records, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case domain.APIResponse:
		return m, true
	case domain.HomeworkRecord:
		return m, true
	default:
		return nil, false
	}
}
