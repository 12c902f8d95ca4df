package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"mise/internal/core/id"
)

// AuditEntry is one operator-forensics record: who did what to which
// document. Distinct from the inventory ledger, which is the quantity
// audit trail; this one captures document-level payloads.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	Compressed        bool            `db:"compressed"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService records audit entries, zstd-compressing large payloads.
// Implements the Auditor interfaces of the receipt and reservation services.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes
}

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// LogChange records one entity change. Runs in the caller's transaction when
// one is in context.
func (s *AuditService) LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	entry := AuditEntry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changesJSON,
		CreatedAt:  time.Now().UTC(),
	}

	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.Compressed = true
	}

	querier := s.txManager.GetQuerier(ctx)
	_, err = querier.Exec(ctx, `
		INSERT INTO sys_audit (id, entity_type, entity_id, action, changes, changes_compressed, compressed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.EntityType, entry.EntityID, entry.Action,
		entry.Changes, entry.ChangesCompressed, entry.Compressed, entry.CreatedAt)

	return err
}

// Decompress returns the raw changes payload of an entry.
func (s *AuditService) Decompress(entry AuditEntry) (json.RawMessage, error) {
	if !entry.Compressed {
		return entry.Changes, nil
	}
	raw, err := s.decoder.DecodeAll(entry.ChangesCompressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress audit changes: %w", err)
	}
	return raw, nil
}
