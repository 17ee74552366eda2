package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitework/sitework/internal/files"
)

// FileReferences stores explicit document references and answers which object
// keys are still in use anywhere in the database. An explicit reference counts
// only while the document it names still exists.
type FileReferences struct {
	pool *pgxpool.Pool
}

func NewFileReferences(pool *pgxpool.Pool) *FileReferences { return &FileReferences{pool: pool} }

func (r *FileReferences) Add(ctx context.Context, ref files.Reference) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO file_references
		(bucket, object_key, document_type, document_id, uploaded_by, content_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (bucket, object_key) DO UPDATE
		SET document_type = EXCLUDED.document_type, document_id = EXCLUDED.document_id`,
		ref.Bucket, ref.Key, ref.DocumentType, ref.DocumentID, ref.UploadedBy, ref.ContentType, ref.Size, ref.CreatedAt)
	return mapError("file reference", err)
}

func (r *FileReferences) ReferencedKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT attachment_key FROM material_specs WHERE attachment_key <> ''
		UNION
		SELECT unnest(photo_keys) FROM construction_reports
		UNION
		SELECT f.object_key FROM file_references f
		WHERE (f.document_type = 'material_spec'
				AND EXISTS (SELECT 1 FROM material_specs m WHERE m.id = f.document_id))
			OR (f.document_type = 'construction_report'
				AND EXISTS (SELECT 1 FROM construction_reports c WHERE c.id = f.document_id))`)
	if err != nil {
		return nil, mapError("file reference", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError("file reference", err)
	}
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out, nil
}
