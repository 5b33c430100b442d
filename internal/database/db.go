package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection. The accounts and
// identity_links tables live here; session state lives in Redis.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Schema for reference (applied by migrations outside this service):
//
//	CREATE TABLE accounts (
//	  id                 BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	  name               VARCHAR(190)  NOT NULL,
//	  email              VARCHAR(190)  NOT NULL,
//	  password_hash      VARCHAR(100)  NULL,
//	  avatar             VARCHAR(500)  NULL,
//	  auth_method        ENUM('local','google','github') NOT NULL,
//	  provider_subject   VARCHAR(190)  NULL,
//	  role               ENUM('user','admin') NOT NULL DEFAULT 'user',
//	  email_verified     TINYINT(1)    NOT NULL DEFAULT 0,
//	  verification_token VARCHAR(100)  NULL,
//	  created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	  updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
//	  UNIQUE KEY uq_email_method (email, auth_method)
//	);
//
//	CREATE TABLE identity_links (
//	  id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	  account_id       BIGINT UNSIGNED NOT NULL,
//	  provider         VARCHAR(32)  NOT NULL,
//	  provider_subject VARCHAR(190) NOT NULL,
//	  created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	  UNIQUE KEY uq_provider_subject (provider, provider_subject),
//	  UNIQUE KEY uq_provider_account (provider, account_id)
//	);
