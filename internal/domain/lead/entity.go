// Package lead содержит доменную модель лида - потенциального студента,
// который ещё не дошёл до первого оплаченного занятия.
package lead

import (
	"errors"
	"strings"
	"time"
)

// Доменные ошибки лида.
var (
	ErrEmptyFullName  = errors.New("lead: full name cannot be empty")
	ErrAlreadyArchived = errors.New("lead: already archived")
	ErrNotArchived     = errors.New("lead: not archived")
	ErrAlreadyConverted = errors.New("lead: already converted to student")
)

// Lead - лид воронки продаж. После конверсии в студента лид остаётся
// в истории, но архивные операции на нём больше не выполняются.
type Lead struct {
	ID          string
	FullName    string
	Phone       string
	Source      string
	Archived    bool
	ArchivedAt  *time.Time
	ConvertedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewLeadParams - параметры создания лида.
type NewLeadParams struct {
	ID       string
	FullName string
	Phone    string
	Source   string
}

// NewLead создаёт лида с валидацией обязательных полей.
func NewLead(params NewLeadParams) (*Lead, error) {
	if strings.TrimSpace(params.FullName) == "" {
		return nil, ErrEmptyFullName
	}

	now := time.Now().UTC()
	return &Lead{
		ID:        params.ID,
		FullName:  strings.TrimSpace(params.FullName),
		Phone:     strings.TrimSpace(params.Phone),
		Source:    params.Source,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsConverted сообщает, стал ли лид студентом.
func (l *Lead) IsConverted() bool {
	return l.ConvertedAt != nil
}

// Archive переводит лида в архив. Повторная архивация - ошибка.
func (l *Lead) Archive(at time.Time) error {
	if l.Archived {
		return ErrAlreadyArchived
	}
	t := at.UTC()
	l.Archived = true
	l.ArchivedAt = &t
	l.UpdatedAt = t
	return nil
}

// Unarchive возвращает лида из архива.
func (l *Lead) Unarchive() error {
	if !l.Archived {
		return ErrNotArchived
	}
	l.Archived = false
	l.ArchivedAt = nil
	l.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkConverted фиксирует момент конверсии лида в студента.
func (l *Lead) MarkConverted(at time.Time) error {
	if l.IsConverted() {
		return ErrAlreadyConverted
	}
	t := at.UTC()
	l.ConvertedAt = &t
	l.UpdatedAt = t
	return nil
}
