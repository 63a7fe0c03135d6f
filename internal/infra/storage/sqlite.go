package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"merchant_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// walletCursor persists the next unused HD derivation index. Single row.
type walletCursor struct {
	ID   uint `gorm:"primaryKey"`
	Next uint32
}

// Storage backs the order store, the paid-order archive and the wallet
// cursor with a single embedded SQLite database.
type Storage struct {
	db *gorm.DB

	// Serializes cursor increments within this process; SQLite serializes
	// the write itself across processes.
	cursorMu sync.Mutex
}

// NewStorage creates a new SQLite storage instance. An empty path places
// the database under the user config directory.
func NewStorage(path string) (*Storage, error) {
	dbPath := path
	if dbPath == "" {
		var err error
		dbPath, err = defaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.Order{}, &domain.PaidOrder{}, &walletCursor{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

func defaultDBPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "MerchantGo", "data", "merchant.db"), nil
}

// ======================================================================================
// Order Operations
// ======================================================================================

// InsertOrder persists a new pending order.
func (s *Storage) InsertOrder(o *domain.Order) error {
	return s.db.Create(o).Error
}

// ListOrders returns all pending orders.
func (s *Storage) ListOrders() ([]domain.Order, error) {
	var orders []domain.Order
	err := s.db.Find(&orders).Error
	return orders, err
}

// FindOrder retrieves a pending order by its receiving address.
func (s *Storage) FindOrder(bchAddr string) (*domain.Order, error) {
	var order domain.Order
	err := s.db.First(&order, "bch_addr = ?", bchAddr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// DeleteOrder removes a pending order by ID.
func (s *Storage) DeleteOrder(id string) error {
	return s.db.Where("id = ?", id).Delete(&domain.Order{}).Error
}

// ======================================================================================
// Paid-Order Operations
// ======================================================================================

// InsertPaidOrder appends a snapshot to the paid-order archive.
func (s *Storage) InsertPaidOrder(p *domain.PaidOrder) error {
	return s.db.Create(p).Error
}

// FindPaidOrder retrieves an archived order by its receiving address.
func (s *Storage) FindPaidOrder(bchAddr string) (*domain.PaidOrder, error) {
	var paid domain.PaidOrder
	err := s.db.First(&paid, "bch_addr = ?", bchAddr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &paid, nil
}

// ======================================================================================
// Wallet Cursor
// ======================================================================================

// NextAddressIndex returns the next unused derivation index and advances
// the cursor. Each call hands out a distinct index, even if the caller
// later fails to use it.
func (s *Storage) NextAddressIndex() (uint32, error) {
	s.cursorMu.Lock()
	defer s.cursorMu.Unlock()

	var assigned uint32
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cur walletCursor
		err := tx.First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cur = walletCursor{Next: 0}
		} else if err != nil {
			return err
		}

		assigned = cur.Next
		cur.Next++
		return tx.Save(&cur).Error
	})
	if err != nil {
		return 0, err
	}
	return assigned, nil
}
