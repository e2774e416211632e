package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/models"
)

// RevisionRepository 修订日志仓库
// 修订是只追加、按 sequence 全序的；这里只读
type RevisionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRevisionRepository 创建修订仓库
func NewRevisionRepository(db *sql.DB, logger *zap.Logger) *RevisionRepository {
	return &RevisionRepository{
		db:     db,
		logger: logger,
	}
}

// ListForEntity 取一个实体的全部修订（升序），作者一并带出
func (r *RevisionRepository) ListForEntity(ctx context.Context, entityKind, entityID string) ([]models.Revision, error) {
	query := `
		SELECT
			rev.id, rev.entity_kind, rev.entity_id, rev.sequence,
			rev.action, rev.revision_at, rev.data,
			u.id, u.username, u.first_name, u.last_name
		FROM revisions rev
		LEFT JOIN users u ON u.id = rev.user_id
		WHERE rev.entity_kind = $1 AND rev.entity_id = $2
		ORDER BY rev.sequence
	`

	rows, err := r.db.QueryContext(ctx, query, entityKind, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}
	defer rows.Close()

	var revisions []models.Revision
	for rows.Next() {
		var rev models.Revision
		var dataRaw []byte
		var userID, username, firstName, lastName sql.NullString

		err := rows.Scan(
			&rev.ID,
			&rev.EntityKind,
			&rev.EntityID,
			&rev.Sequence,
			&rev.Action,
			&rev.RevisionAt,
			&dataRaw,
			&userID,
			&username,
			&firstName,
			&lastName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}

		if len(dataRaw) > 0 {
			if err := json.Unmarshal(dataRaw, &rev.Data); err != nil {
				return nil, fmt.Errorf("failed to parse revision data: %w", err)
			}
		}
		if rev.Data == nil {
			rev.Data = map[string]interface{}{}
		}

		// user_id 为空表示非交互来源（传感器/集成）的修订
		if userID.Valid {
			rev.User = &models.RevisionUser{
				ID:        userID.String,
				Username:  username.String,
				FirstName: firstName.String,
				LastName:  lastName.String,
			}
		}

		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate revisions: %w", err)
	}

	return revisions, nil
}
