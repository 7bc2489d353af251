package blobstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlobRecord is one row of the blobs table.
type BlobRecord struct {
	Namespace string `gorm:"primaryKey;size:64;index:idx_blobs_namespace"`
	ID        string `gorm:"primaryKey;size:191"`
	Data      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (BlobRecord) TableName() string { return "blobs" }

// SetMember is one row of the set_members table.
type SetMember struct {
	SetName string `gorm:"primaryKey;size:64;index:idx_set_members_set_name"`
	Member  string `gorm:"primaryKey;size:191"`
}

func (SetMember) TableName() string { return "set_members" }

// SQLStore keeps blobs and sets in two relational tables. Any gorm dialect
// that supports upserts works.
type SQLStore struct {
	db        *gorm.DB
	opTimeout time.Duration
}

func NewSQLStore(db *gorm.DB, opTimeout time.Duration) *SQLStore {
	return &SQLStore{db: db, opTimeout: opTimeout}
}

// Migrate creates the blobs and set_members tables.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&BlobRecord{}, &SetMember{}); err != nil {
		return backendErr("migrate", "", "", err)
	}
	return nil
}

func (s *SQLStore) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return s.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	return s.db.WithContext(ctx), cancel
}

func (s *SQLStore) Put(ctx context.Context, namespace, id string, data []byte) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	rec := BlobRecord{Namespace: namespace, ID: id, Data: data, UpdatedAt: time.Now().UTC()}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return backendErr("put", namespace, id, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, namespace, id string) ([]byte, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var rec BlobRecord
	err := db.Where("namespace = ? AND id = ?", namespace, id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, backendErr("get", namespace, id, err)
	}
	return rec.Data, nil
}

func (s *SQLStore) Exists(ctx context.Context, namespace, id string) (bool, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var n int64
	err := db.Model(&BlobRecord{}).Where("namespace = ? AND id = ?", namespace, id).Count(&n).Error
	if err != nil {
		return false, backendErr("exists", namespace, id, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Delete(ctx context.Context, namespace, id string) (bool, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	res := db.Where("namespace = ? AND id = ?", namespace, id).Delete(&BlobRecord{})
	if res.Error != nil {
		return false, backendErr("delete", namespace, id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLStore) ListIDs(ctx context.Context, namespace string) ([]string, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	ids := []string{}
	err := db.Model(&BlobRecord{}).Where("namespace = ?", namespace).Order("id").Pluck("id", &ids).Error
	if err != nil {
		return nil, backendErr("list", namespace, "", err)
	}
	return ids, nil
}

func (s *SQLStore) SetAdd(ctx context.Context, set, member string) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&SetMember{SetName: set, Member: member}).Error
	if err != nil {
		return backendErr("sadd", set, member, err)
	}
	return nil
}

func (s *SQLStore) SetRemove(ctx context.Context, set, member string) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	err := db.Where("set_name = ? AND member = ?", set, member).Delete(&SetMember{}).Error
	if err != nil {
		return backendErr("srem", set, member, err)
	}
	return nil
}

func (s *SQLStore) SetMembers(ctx context.Context, set string) ([]string, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	members := []string{}
	err := db.Model(&SetMember{}).Where("set_name = ?", set).Order("member").Pluck("member", &members).Error
	if err != nil {
		return nil, backendErr("smembers", set, "", err)
	}
	return members, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return backendErr("ping", "", "", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return backendErr("ping", "", "", err)
	}
	return nil
}

func (s *SQLStore) timeout() time.Duration {
	if s.opTimeout > 0 {
		return s.opTimeout
	}
	return 3 * time.Second
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
