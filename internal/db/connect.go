package db

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"wallet_ledger/internal/deposit"
	"wallet_ledger/internal/logger"
	"wallet_ledger/internal/rollover"
	"wallet_ledger/internal/settings"
	"wallet_ledger/internal/settlement"
	"wallet_ledger/internal/wallet"
	"wallet_ledger/internal/withdrawal"
)

func ConnectDb(url string, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  url,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Error),
	})
	if err != nil {
		return nil, err
	}

	log.Info("database connection established")

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetMaxOpenConns(200)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&wallet.Wallet{},
		&wallet.LedgerChange{},
		&rollover.Event{},
		&settlement.Record{},
		&deposit.Deposit{},
		&withdrawal.Withdrawal{},
		&settings.Setting{},
	}
}

func Migrate(db *gorm.DB, log *logger.Logger) error {
	log.Info("migrating database...")
	if err := db.AutoMigrate(Models()...); err != nil {
		log.Errorf("failed to migrate database: %v", err)
		return err
	}
	return nil
}
