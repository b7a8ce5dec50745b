package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/archive"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGER
// Архивация и разархивация счетов, лидов и членств в группах. Каждая
// архивация субъекта создаёт архивную запись; субъект и запись меняются
// в одной storage-транзакции. Архивация счёта каскадно закрывает его
// активные членства, разархивация каскадно их возвращает.
// ══════════════════════════════════════════════════════════════════════════════

// PreArchiveHook runs inside the archival transaction before any state
// changes. Returning an error aborts the archival. Used to settle side
// effects that must accompany the archival atomically (e.g. a first-lesson
// charge posted right before a NEW student is archived).
type PreArchiveHook func(ctx context.Context) error

// LifecycleManager orchestrates archival state transitions.
type LifecycleManager struct {
	store     LifecycleStore
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewLifecycleManager creates a lifecycle manager.
func NewLifecycleManager(store LifecycleStore, publisher shared.EventPublisher, logger *slog.Logger) *LifecycleManager {
	return &LifecycleManager{
		store:     store,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "lifecycle_manager")),
	}
}

// ArchiveAccountInput contains all data required to archive an account.
type ArchiveAccountInput struct {
	// AccountID - архивируемый счёт.
	AccountID string

	// ReasonCode - классификатор причины архивации.
	ReasonCode archive.ReasonCode

	// ReasonText - свободный текст причины.
	ReasonText string

	// ActorID - сотрудник-инициатор. Пусто для системных архиваций.
	ActorID string

	// PreArchive - опциональный хук, выполняемый в той же транзакции до
	// смены состояния. Ошибка хука отменяет архивацию целиком.
	PreArchive PreArchiveHook
}

// Validate checks the input.
func (i ArchiveAccountInput) Validate() error {
	if strings.TrimSpace(i.AccountID) == "" {
		return shared.NewDomainError("lifecycle", "ArchiveAccount", shared.ErrInvalidInput, "account id is required")
	}
	if !i.ReasonCode.IsValid() {
		return shared.NewDomainError("lifecycle", "ArchiveAccount", shared.ErrInvalidInput, "unknown archive reason code")
	}
	return nil
}

// ArchiveAccountResult describes a completed account archival.
type ArchiveAccountResult struct {
	// RecordID - созданная архивная запись.
	RecordID string

	// CascadedMemberships - сколько членств закрыто каскадом.
	CascadedMemberships int
}

// ArchiveAccount archives an account and cascades over its memberships.
//
// Inside one storage transaction: the optional pre-archive hook runs, the
// account row is locked and flipped to archived, an archive record is
// created, and every active membership is archived with the cascade flag
// set. Archiving an already archived account fails with
// shared.ErrAlreadyArchived.
func (m *LifecycleManager) ArchiveAccount(ctx context.Context, input ArchiveAccountInput) (*ArchiveAccountResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var result ArchiveAccountResult
	now := time.Now().UTC()

	err := m.store.WithinTx(ctx, func(tx LifecycleTx) error {
		acc, err := tx.GetAccountForUpdate(ctx, input.AccountID)
		if err != nil {
			return err
		}
		if acc.Archived {
			return shared.ErrAlreadyArchived
		}

		if input.PreArchive != nil {
			if err := input.PreArchive(ctx); err != nil {
				return fmt.Errorf("pre-archive hook: %w", err)
			}
		}

		if err := acc.Archive(input.ActorID, now); err != nil {
			return err
		}
		if err := tx.UpdateAccount(ctx, acc); err != nil {
			return fmt.Errorf("update account: %w", err)
		}

		record, err := archive.NewRecord(archive.NewRecordParams{
			ID:         uuid.NewString(),
			StudentID:  acc.ID,
			ReasonCode: input.ReasonCode,
			ReasonText: input.ReasonText,
			CreatedBy:  input.ActorID,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertArchiveRecord(ctx, record); err != nil {
			return fmt.Errorf("insert archive record: %w", err)
		}

		memberships, err := tx.GetActiveMemberships(ctx, acc.ID)
		if err != nil {
			return fmt.Errorf("load active memberships: %w", err)
		}
		for _, ms := range memberships {
			if err := ms.Archive(input.ReasonText, true, now); err != nil {
				return fmt.Errorf("cascade membership %s: %w", ms.ID, err)
			}
			if err := tx.UpdateMembership(ctx, ms); err != nil {
				return fmt.Errorf("update membership %s: %w", ms.ID, err)
			}
		}

		result = ArchiveAccountResult{
			RecordID:            record.ID,
			CascadedMemberships: len(memberships),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("account archived",
		slog.String("account_id", input.AccountID),
		slog.String("record_id", result.RecordID),
		slog.String("reason_code", string(input.ReasonCode)),
		slog.Int("cascaded_memberships", result.CascadedMemberships),
	)

	if err := m.publisher.Publish(shared.NewAccountArchivedEvent(
		input.AccountID, result.RecordID, string(input.ReasonCode), result.CascadedMemberships > 0,
	)); err != nil {
		m.logger.Warn("failed to publish account archived event", slog.Any("error", err))
	}

	return &result, nil
}

// ArchiveLeadInput contains all data required to archive a lead.
type ArchiveLeadInput struct {
	LeadID     string
	ReasonCode archive.ReasonCode
	ReasonText string
	ActorID    string
}

// ArchiveLead archives a lead and creates its archive record atomically.
func (m *LifecycleManager) ArchiveLead(ctx context.Context, input ArchiveLeadInput) (string, error) {
	if strings.TrimSpace(input.LeadID) == "" {
		return "", shared.NewDomainError("lifecycle", "ArchiveLead", shared.ErrInvalidInput, "lead id is required")
	}
	if !input.ReasonCode.IsValid() {
		return "", shared.NewDomainError("lifecycle", "ArchiveLead", shared.ErrInvalidInput, "unknown archive reason code")
	}

	var recordID string
	now := time.Now().UTC()

	err := m.store.WithinTx(ctx, func(tx LifecycleTx) error {
		l, err := tx.GetLeadForUpdate(ctx, input.LeadID)
		if err != nil {
			return err
		}
		if l.Archived {
			return shared.ErrAlreadyArchived
		}

		if err := l.Archive(now); err != nil {
			return err
		}
		if err := tx.UpdateLead(ctx, l); err != nil {
			return fmt.Errorf("update lead: %w", err)
		}

		record, err := archive.NewRecord(archive.NewRecordParams{
			ID:         uuid.NewString(),
			LeadID:     l.ID,
			ReasonCode: input.ReasonCode,
			ReasonText: input.ReasonText,
			CreatedBy:  input.ActorID,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertArchiveRecord(ctx, record); err != nil {
			return fmt.Errorf("insert archive record: %w", err)
		}

		recordID = record.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	m.logger.Info("lead archived",
		slog.String("lead_id", input.LeadID),
		slog.String("record_id", recordID),
		slog.String("reason_code", string(input.ReasonCode)),
	)

	return recordID, nil
}

// ArchiveMembership archives a single membership directly (not via account
// cascade). Returns how many active memberships the account has left, so
// callers can decide whether account archival should follow.
func (m *LifecycleManager) ArchiveMembership(ctx context.Context, membershipID, comment string) (remaining int, err error) {
	if strings.TrimSpace(membershipID) == "" {
		return 0, shared.NewDomainError("lifecycle", "ArchiveMembership", shared.ErrInvalidInput, "membership id is required")
	}

	var accountID, groupID string
	now := time.Now().UTC()

	err = m.store.WithinTx(ctx, func(tx LifecycleTx) error {
		ms, err := tx.GetMembership(ctx, membershipID)
		if err != nil {
			return err
		}
		if ms.Archived {
			return shared.ErrAlreadyArchived
		}

		if err := ms.Archive(comment, false, now); err != nil {
			return err
		}
		if err := tx.UpdateMembership(ctx, ms); err != nil {
			return fmt.Errorf("update membership: %w", err)
		}

		accountID, groupID = ms.AccountID, ms.GroupID

		left, err := tx.CountActiveMemberships(ctx, ms.AccountID)
		if err != nil {
			return fmt.Errorf("count active memberships: %w", err)
		}
		remaining = left
		return nil
	})
	if err != nil {
		return 0, err
	}

	m.logger.Info("membership archived",
		slog.String("membership_id", membershipID),
		slog.String("account_id", accountID),
		slog.Int("remaining_active", remaining),
	)

	if pubErr := m.publisher.Publish(shared.NewMembershipArchivedEvent(
		membershipID, accountID, groupID, comment,
	)); pubErr != nil {
		m.logger.Warn("failed to publish membership archived event", slog.Any("error", pubErr))
	}

	return remaining, nil
}

// Unarchive reverses the archival described by a record.
//
// The record is stamped with the unarchive metadata exactly once; a second
// unarchival of the same record fails with shared.ErrNotArchived. For
// student records the account comes back and only cascade-archived
// memberships are reopened - memberships archived directly stay archived.
func (m *LifecycleManager) Unarchive(ctx context.Context, recordID, actorID string) error {
	if strings.TrimSpace(recordID) == "" {
		return shared.NewDomainError("lifecycle", "Unarchive", shared.ErrInvalidInput, "record id is required")
	}

	var subjectID string
	var isStudent bool
	now := time.Now().UTC()

	err := m.store.WithinTx(ctx, func(tx LifecycleTx) error {
		record, err := tx.GetArchiveRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if record.IsUnarchived() {
			return shared.ErrNotArchived
		}

		if err := record.StampUnarchived(actorID, now); err != nil {
			return err
		}
		if err := tx.UpdateArchiveRecord(ctx, record); err != nil {
			return fmt.Errorf("update archive record: %w", err)
		}

		subjectID = record.SubjectID()
		isStudent = record.StudentID != nil

		if isStudent {
			acc, err := tx.GetAccountForUpdate(ctx, subjectID)
			if err != nil {
				return err
			}
			if err := acc.Unarchive(); err != nil {
				return shared.ErrNotArchived
			}
			if err := tx.UpdateAccount(ctx, acc); err != nil {
				return fmt.Errorf("update account: %w", err)
			}

			cascaded, err := tx.GetCascadedMemberships(ctx, acc.ID)
			if err != nil {
				return fmt.Errorf("load cascaded memberships: %w", err)
			}
			for _, ms := range cascaded {
				if err := ms.Unarchive(); err != nil {
					return fmt.Errorf("reopen membership %s: %w", ms.ID, err)
				}
				if err := tx.UpdateMembership(ctx, ms); err != nil {
					return fmt.Errorf("update membership %s: %w", ms.ID, err)
				}
			}
			return nil
		}

		l, err := tx.GetLeadForUpdate(ctx, subjectID)
		if err != nil {
			return err
		}
		if err := l.Unarchive(); err != nil {
			return shared.ErrNotArchived
		}
		return tx.UpdateLead(ctx, l)
	})
	if err != nil {
		return err
	}

	m.logger.Info("subject unarchived",
		slog.String("record_id", recordID),
		slog.String("subject_id", subjectID),
		slog.Bool("student", isStudent),
	)

	if isStudent {
		if pubErr := m.publisher.Publish(shared.NewAccountUnarchivedEvent(
			subjectID, recordID, actorID,
		)); pubErr != nil {
			m.logger.Warn("failed to publish account unarchived event", slog.Any("error", pubErr))
		}
	}

	return nil
}
