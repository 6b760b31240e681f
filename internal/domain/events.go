package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusEvent описывает доставленное уведомление об изменении статуса работы.
type StatusEvent struct {
	ID              string    `json:"event_id"`
	HomeworkID      string    `json:"homework_id,omitempty"`
	HomeworkName    string    `json:"homework_name"`
	LessonName      string    `json:"lesson_name,omitempty"`
	Status          string    `json:"status"`
	Verdict         string    `json:"verdict"`
	ReviewerComment string    `json:"reviewer_comment,omitempty"`
	Message         string    `json:"message"`
	ObservedAt      time.Time `json:"observed_at"`
}

// NewStatusEvent собирает событие по записи API и отправленному тексту.
func NewStatusEvent(record HomeworkRecord, message string, now time.Time) StatusEvent {
	name, _ := record.Name()
	status, _ := record.Status()
	return StatusEvent{
		ID:              uuid.NewString(),
		HomeworkID:      record.Field(KeyID),
		HomeworkName:    name,
		LessonName:      record.Field(KeyLessonName),
		Status:          status,
		Verdict:         Verdicts[status],
		ReviewerComment: record.Field(KeyComment),
		Message:         message,
		ObservedAt:      now.UTC(),
	}
}
