package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/repos"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
  "github.com/nclhealth/cluster-cache-backend/internal/utils"
)

const (
  DefaultHistoryLimit       = 50
  DefaultRecentChangesLimit = 100
  DefaultSummaryDays        = 30
)

// ChangeSession is one refresh session's worth of ledger records, annotated
// for display: newest-first ordering, added/removed counts, acting user.
type ChangeSession struct {
  RefreshSessionID uuid.UUID             `json:"refresh_session_id"`
  Timestamp        time.Time             `json:"timestamp"`
  ChangedBy        string                `json:"changed_by"`
  AddedCount       int                   `json:"added_count"`
  RemovedCount     int                   `json:"removed_count"`
  Added            []*types.ChangeRecord `json:"added,omitempty"`
  Removed          []*types.ChangeRecord `json:"removed,omitempty"`
}

// ChangeSummaryRow is one (day, change type) bucket of a cluster's ledger.
type ChangeSummaryRow struct {
  ChangeDate  string           `json:"change_date"`
  ChangeType  types.ChangeType `json:"change_type"`
  ChangeCount int64            `json:"change_count"`
}

type HistoryService interface {
  GetChangeHistory(ctx context.Context, clusterID string, limit int) ([]*types.ChangeRecord, error)
  GetChangeSessions(ctx context.Context, clusterID string, limit int) ([]*ChangeSession, error)
  GetChangeSummary(ctx context.Context, clusterID string, days int) ([]*ChangeSummaryRow, error)
  GetRecentChanges(ctx context.Context, limit int) ([]*types.ChangeRecord, error)
}

type historyService struct {
  db         *gorm.DB
  log        *logger.Logger
  ledgerRepo repos.ChangeLedgerRepo
}

func NewHistoryService(db *gorm.DB, baseLog *logger.Logger, ledgerRepo repos.ChangeLedgerRepo) HistoryService {
  serviceLog := baseLog.With("service", "HistoryService")
  return &historyService{db: db, log: serviceLog, ledgerRepo: ledgerRepo}
}

// GetChangeHistory returns raw ledger records newest-first. A cluster with no
// history returns an empty slice, never an error.
func (hs *historyService) GetChangeHistory(ctx context.Context, clusterID string, limit int) ([]*types.ChangeRecord, error) {
  if limit <= 0 {
    limit = DefaultHistoryLimit
  }
  normalized := utils.NormalizeClusterID(clusterID)
  records, err := hs.ledgerRepo.GetByClusterID(ctx, nil, normalized, limit)
  if err != nil {
    return nil, fmt.Errorf("load change history: %w", err)
  }
  return records, nil
}

// GetChangeSessions groups the history by refresh session, newest-first.
// Records arrive already ordered newest-first, so the first appearance of a
// session id fixes the session order.
func (hs *historyService) GetChangeSessions(ctx context.Context, clusterID string, limit int) ([]*ChangeSession, error) {
  records, err := hs.GetChangeHistory(ctx, clusterID, limit)
  if err != nil {
    return nil, err
  }

  sessionByID := make(map[uuid.UUID]*ChangeSession)
  sessions := []*ChangeSession{}
  for _, record := range records {
    session, ok := sessionByID[record.RefreshSessionID]
    if !ok {
      changedBy := record.ChangedBy
      if changedBy == "" {
        changedBy = "System"
      }
      session = &ChangeSession{
        RefreshSessionID: record.RefreshSessionID,
        Timestamp:        record.ChangeTimestamp,
        ChangedBy:        changedBy,
      }
      sessionByID[record.RefreshSessionID] = session
      sessions = append(sessions, session)
    }
    switch record.ChangeType {
    case types.ChangeTypeAdded:
      session.AddedCount++
      session.Added = append(session.Added, record)
    case types.ChangeTypeRemoved:
      session.RemovedCount++
      session.Removed = append(session.Removed, record)
    }
  }
  return sessions, nil
}

// GetChangeSummary buckets a cluster's recent changes per day and change
// type, newest day first.
func (hs *historyService) GetChangeSummary(ctx context.Context, clusterID string, days int) ([]*ChangeSummaryRow, error) {
  if days <= 0 {
    days = DefaultSummaryDays
  }
  normalized := utils.NormalizeClusterID(clusterID)
  since := time.Now().UTC().AddDate(0, 0, -days)
  records, err := hs.ledgerRepo.GetSince(ctx, nil, normalized, since)
  if err != nil {
    return nil, fmt.Errorf("load change summary: %w", err)
  }

  type bucketKey struct {
    date       string
    changeType types.ChangeType
  }
  counts := make(map[bucketKey]int64)
  order := []bucketKey{}
  for _, record := range records {
    key := bucketKey{date: record.ChangeTimestamp.UTC().Format("2006-01-02"), changeType: record.ChangeType}
    if _, ok := counts[key]; !ok {
      order = append(order, key)
    }
    counts[key]++
  }

  rows := make([]*ChangeSummaryRow, 0, len(order))
  for _, key := range order {
    rows = append(rows, &ChangeSummaryRow{
      ChangeDate:  key.date,
      ChangeType:  key.changeType,
      ChangeCount: counts[key],
    })
  }
  return rows, nil
}

func (hs *historyService) GetRecentChanges(ctx context.Context, limit int) ([]*types.ChangeRecord, error) {
  if limit <= 0 {
    limit = DefaultRecentChangesLimit
  }
  records, err := hs.ledgerRepo.GetRecent(ctx, nil, limit)
  if err != nil {
    return nil, fmt.Errorf("load recent changes: %w", err)
  }
  return records, nil
}
