package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"

	"github.com/moviesaw/auth-service/internal/model"
	"github.com/moviesaw/auth-service/internal/utils"
)

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !isDuplicateKey(dup) {
		t.Fatal("1062 not recognized as duplicate key")
	}
	if !isDuplicateKey(fmt.Errorf("exec: %w", dup)) {
		t.Fatal("wrapped 1062 not recognized")
	}
	if isDuplicateKey(&mysql.MySQLError{Number: 1045}) {
		t.Fatal("unrelated mysql error treated as duplicate key")
	}
	if isDuplicateKey(errors.New("plain error")) {
		t.Fatal("non-mysql error treated as duplicate key")
	}
}

func TestVerifyPasswordRequiresLocalMethod(t *testing.T) {
	repo := &AccountRepo{}
	hash, err := utils.HashPassword("hunter22", utils.DefaultBcryptCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	local := model.Account{AuthMethod: model.AuthMethodLocal, PasswordHash: hash}
	ok, err := repo.VerifyPassword(local, "hunter22")
	if err != nil || !ok {
		t.Fatalf("local account: ok=%v err=%v", ok, err)
	}
	ok, err = repo.VerifyPassword(local, "wrong")
	if err != nil || ok {
		t.Fatalf("wrong password: ok=%v err=%v", ok, err)
	}

	// Provider accounts store no hash; a password check is a contract
	// violation, not a mismatch.
	provider := model.Account{AuthMethod: model.AuthMethodGoogle}
	if _, err := repo.VerifyPassword(provider, "anything"); !errors.Is(err, ErrUnsupportedAuthMethod) {
		t.Fatalf("provider account: got %v, want ErrUnsupportedAuthMethod", err)
	}
}
