package pixstore

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/PixOffline/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db *gorm.DB
}

// New creates a transaction store backed by GORM.
func New(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Get(orderID uint, key string) (string, bool, error) {
	var meta models.PixMeta
	err := s.db.Where("order_id = ? AND meta_key = ?", orderID, key).First(&meta).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return meta.MetaValue, true, nil
}

func (s *gormStore) Upsert(orderID uint, key, value string) error {
	res := s.db.Model(&models.PixMeta{}).
		Where("order_id = ? AND meta_key = ?", orderID, key).
		Update("meta_value", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return s.db.Create(&models.PixMeta{
		OrderID:   orderID,
		MetaKey:   key,
		MetaValue: value,
	}).Error
}

func (s *gormStore) Delete(orderID uint, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.Where("order_id = ? AND meta_key IN ?", orderID, keys).
		Delete(&models.PixMeta{}).Error
}

func (s *gormStore) DeleteAll(orderID uint) error {
	// Persist the high-water mark before the rows that carry it disappear,
	// otherwise a later assignment could reuse a deleted id.
	if err := s.persistSequenceFloor(); err != nil {
		return err
	}
	return s.db.Where("order_id = ? AND meta_key LIKE ?", orderID, models.MetaKeyPrefix+"%").
		Delete(&models.PixMeta{}).Error
}

func (s *gormStore) persistSequenceFloor() error {
	max, err := s.MaxTransactionID()
	if err != nil || max == 0 {
		return err
	}
	var seq models.PixMeta
	err = s.db.Where("order_id = ? AND meta_key = ?", seqOrderID, seqKey).First(&seq).Error
	if err == gorm.ErrRecordNotFound {
		return s.db.Create(&models.PixMeta{
			OrderID:   seqOrderID,
			MetaKey:   seqKey,
			MetaValue: strconv.FormatUint(max, 10),
		}).Error
	}
	if err != nil {
		return err
	}
	cur, _ := strconv.ParseUint(seq.MetaValue, 10, 64)
	if max <= cur {
		return nil
	}
	return s.db.Model(&models.PixMeta{}).
		Where("id = ?", seq.ID).
		Update("meta_value", strconv.FormatUint(max, 10)).Error
}

func (s *gormStore) Exists(orderID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.PixMeta{}).
		Where("order_id = ? AND meta_key = ?", orderID, models.MetaTransactionID).
		Count(&count).Error
	return count > 0, err
}

func (s *gormStore) MaxTransactionID() (uint64, error) {
	var max *string
	err := s.db.Model(&models.PixMeta{}).
		Where("meta_key = ?", models.MetaTransactionID).
		Select("MAX(CAST(meta_value AS UNSIGNED))").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil || *max == "" {
		return 0, nil
	}
	return strconv.ParseUint(*max, 10, 64)
}

func (s *gormStore) NextTransactionID() (uint64, error) {
	// All sequence rows are locked at once: concurrent creators for
	// different orders hold disjoint WithLock sections, so the FOR UPDATE
	// here is what serializes the id assignment globally. Startup seeds
	// the row (EnsureSequenceRow), making the empty case a test-only path;
	// should duplicates exist anyway, the max wins and extras are dropped.
	var seqRows []models.PixMeta
	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND meta_key = ?", seqOrderID, seqKey).
		Find(&seqRows).Error
	if err != nil {
		return 0, err
	}

	var last uint64
	for _, row := range seqRows {
		if v, perr := strconv.ParseUint(row.MetaValue, 10, 64); perr == nil && v > last {
			last = v
		}
	}
	if max, merr := s.MaxTransactionID(); merr == nil && max > last {
		last = max
	}
	next := last + 1

	if len(seqRows) == 0 {
		return next, s.db.Create(&models.PixMeta{
			OrderID:   seqOrderID,
			MetaKey:   seqKey,
			MetaValue: strconv.FormatUint(next, 10),
		}).Error
	}
	if len(seqRows) > 1 {
		extras := make([]uint, 0, len(seqRows)-1)
		for _, row := range seqRows[1:] {
			extras = append(extras, row.ID)
		}
		if err := s.db.Where("id IN ?", extras).Delete(&models.PixMeta{}).Error; err != nil {
			return 0, err
		}
	}
	return next, s.db.Model(&models.PixMeta{}).
		Where("id = ?", seqRows[0].ID).
		Update("meta_value", strconv.FormatUint(next, 10)).Error
}

// EnsureSequenceRow creates the transaction-id sequence row if it does not
// exist, seeded from the highest stored id. Called once during startup so
// concurrent first creators always find a row to lock.
func EnsureSequenceRow(db *gorm.DB) error {
	s := &gormStore{db: db}
	var count int64
	if err := db.Model(&models.PixMeta{}).
		Where("order_id = ? AND meta_key = ?", seqOrderID, seqKey).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	max, err := s.MaxTransactionID()
	if err != nil {
		return err
	}
	return db.Create(&models.PixMeta{
		OrderID:   seqOrderID,
		MetaKey:   seqKey,
		MetaValue: strconv.FormatUint(max, 10),
	}).Error
}

func (s *gormStore) TransactionIDs(orderID uint) ([]uint64, error) {
	var values []string
	err := s.db.Model(&models.PixMeta{}).
		Where("order_id = ? AND meta_key = ?", orderID, models.MetaTransactionID).
		Pluck("meta_value", &values).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *gormStore) OrderIDs() ([]uint, error) {
	var ids []uint
	err := s.db.Model(&models.PixMeta{}).
		Where("meta_key LIKE ?", models.MetaKeyPrefix+"%").
		Distinct().
		Order("order_id ASC").
		Pluck("order_id", &ids).Error
	return ids, err
}

func (s *gormStore) OrderIDsCreatedBefore(cutoff time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&models.PixMeta{}).
		Where("meta_key = ? AND meta_value < ?", models.MetaCreatedAt, FormatTime(cutoff)).
		Distinct().
		Pluck("order_id", &ids).Error
	return ids, err
}

func (s *gormStore) List() ([]Row, error) {
	var metas []models.PixMeta
	err := s.db.Where("meta_key LIKE ?", models.MetaKeyPrefix+"%").
		Order("order_id ASC, id ASC").
		Find(&metas).Error
	if err != nil {
		return nil, err
	}
	return assembleRows(metas), nil
}

func (s *gormStore) WithLock(orderID uint, fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		// Row lock on the order's transaction-id rows serializes concurrent
		// creators for the same order until commit or rollback.
		var locked []models.PixMeta
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ? AND meta_key = ?", orderID, models.MetaTransactionID).
			Find(&locked).Error; err != nil {
			return err
		}
		return fn(&gormStore{db: tx})
	})
}

// assembleRows folds attribute rows into per-order transactions ordered by
// transaction id descending. Later rows win on duplicate keys, matching
// the per-attribute last-write-wins contract.
func assembleRows(metas []models.PixMeta) []Row {
	byOrder := make(map[uint]map[string]string)
	var order []uint
	for _, m := range metas {
		attrs, ok := byOrder[m.OrderID]
		if !ok {
			attrs = make(map[string]string)
			byOrder[m.OrderID] = attrs
			order = append(order, m.OrderID)
		}
		attrs[m.MetaKey] = m.MetaValue
	}

	rows := make([]Row, 0, len(order))
	for _, oid := range order {
		attrs := byOrder[oid]
		raw, ok := attrs[models.MetaTransactionID]
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			continue
		}
		rows = append(rows, Row{OrderID: oid, TransactionID: id, Attributes: attrs})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TransactionID > rows[j].TransactionID })
	return rows
}
