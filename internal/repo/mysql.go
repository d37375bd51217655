package repo

import (
	"Zyncrate/config"
	"Zyncrate/model"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	gormMysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// autoMigrateAll migrates all database models.
func autoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Guest{},
		&model.File{},
		&model.AnalyticsEvent{},
		&model.Setting{},
	)
}

// OpenMysql connects to dbName, creating it first when allowCreate is set
// and the server reports it unknown.
func OpenMysql(cfg config.Config, dbName string, allowCreate bool) (*gorm.DB, error) {
	gormCfg := &gorm.Config{TranslateError: true}
	db, err := gorm.Open(gormMysql.Open(cfg.MySQLDSN(dbName)), gormCfg)
	if err != nil && allowCreate && isUnknownDatabaseError(err) {
		if createErr := ensureMySQLDatabase(cfg, dbName); createErr != nil {
			return nil, fmt.Errorf("create database %s: %w", dbName, createErr)
		}
		db, err = gorm.Open(gormMysql.Open(cfg.MySQLDSN(dbName)), gormCfg)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrateAll(db); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

// InitMysql initializes the main MySQL connection.
func InitMysql(cfg config.Config) *gorm.DB {
	db, err := OpenMysql(cfg, cfg.DBName, false)
	if err != nil {
		log.Fatal("init mysql fail ", err)
	}
	log.Println("init mysql success")
	return db
}

func isUnknownDatabaseError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1049
	}
	return strings.Contains(strings.ToLower(err.Error()), "unknown database")
}

func ensureMySQLDatabase(cfg config.Config, dbName string) error {
	dbName = strings.TrimSpace(dbName)
	if dbName == "" {
		return errors.New("empty database name")
	}

	serverDB, err := sql.Open("mysql", cfg.MySQLDSN(""))
	if err != nil {
		return err
	}
	defer serverDB.Close()

	if err = serverDB.Ping(); err != nil {
		return err
	}

	_, err = serverDB.Exec(
		"CREATE DATABASE IF NOT EXISTS " + quoteMySQLIdentifier(dbName) + " CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci",
	)
	return err
}

func quoteMySQLIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
