package homework

import (
	"fmt"

	"homework-bot/internal/domain"
)

const changedStatusTemplate = `Изменился статус проверки работы "%s". %s`

// ParseStatus формирует текст уведомления по записи о работе.
func ParseStatus(record domain.HomeworkRecord) (string, error) {
	name, ok := record.Name()
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrMissingKey, domain.KeyHomeworkName)
	}
	if _, ok := record[domain.KeyStatus]; !ok {
		return "", fmt.Errorf("%w: %s у работы %q", domain.ErrMissingKey, domain.KeyStatus, name)
	}
	status, isString := record[domain.KeyStatus].(string)
	verdict, known := domain.Verdicts[status]
	if !isString || !known {
		return "", fmt.Errorf("%w: %v у работы %q", domain.ErrUnknownStatus, record[domain.KeyStatus], name)
	}
	return fmt.Sprintf(changedStatusTemplate, name, verdict), nil
}
