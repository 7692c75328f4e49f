package task

import "carrefour/harvester/internal/domain"

const CategoryRetryTaskType = "CategoryRetryTask"

type CategoryRetryTask struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Error      string `json:"error"`       // Cause of the last failure
	RetryCount int    `json:"retry_count"` // Failed harvests of this category so far
}

func (t *CategoryRetryTask) TaskType() string {
	return CategoryRetryTaskType
}

func (t *CategoryRetryTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}

func (t *CategoryRetryTask) Category() domain.CategoryTask {
	return domain.CategoryTask{Name: t.Name, Label: t.Label}
}
