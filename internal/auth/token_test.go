package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/crewdeck/crewdeck/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Agent{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestGenerateToken_Shape(t *testing.T) {
	token, lookup, digest, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if !strings.HasPrefix(token, "cd_"+lookup+"_") {
		t.Errorf("token = %q, want prefix cd_%s_", token, lookup)
	}
	if len(lookup) != lookupBytes*2 {
		t.Errorf("lookup length = %d, want %d", len(lookup), lookupBytes*2)
	}
	if digest != Digest(token) {
		t.Error("digest does not match token")
	}

	got, ok := LookupKey(token)
	if !ok || got != lookup {
		t.Errorf("LookupKey = %q/%v, want %q/true", got, ok, lookup)
	}
}

func TestGenerateToken_Unique(t *testing.T) {
	a, _, _, _ := GenerateToken()
	b, _, _, _ := GenerateToken()
	if a == b {
		t.Error("two generated tokens are identical")
	}
}

func TestLookupKey_Malformed(t *testing.T) {
	for _, token := range []string{"", "cd", "cd_", "cd__", "cd_abc", "xx_abc_def", "cd_abc_def_ghi"} {
		if _, ok := LookupKey(token); ok {
			t.Errorf("LookupKey(%q) ok = true, want false", token)
		}
	}
}

func TestAuthenticateAgent(t *testing.T) {
	db := testDB(t)
	token, lookup, digest, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	agent := models.Agent{ID: "ag1", Name: "Atlas", TokenLookup: lookup, TokenDigest: digest}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}

	got, err := AuthenticateAgent(db, token)
	if err != nil {
		t.Fatalf("AuthenticateAgent: %v", err)
	}
	if got.ID != "ag1" {
		t.Errorf("agent = %q, want ag1", got.ID)
	}
}

func TestAuthenticateAgent_WrongSecret(t *testing.T) {
	db := testDB(t)
	token, lookup, digest, _ := GenerateToken()
	db.Create(&models.Agent{ID: "ag1", Name: "Atlas", TokenLookup: lookup, TokenDigest: digest})

	// Same lookup, different secret: row is found, digest must reject.
	forged := token[:len(token)-4] + "0000"
	if forged == token {
		t.Skip("random secret already ends in 0000")
	}
	_, err := AuthenticateAgent(db, forged)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticateAgent_UnknownLookup(t *testing.T) {
	db := testDB(t)
	token, _, _, _ := GenerateToken()
	_, err := AuthenticateAgent(db, token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyAdminToken(t *testing.T) {
	if !VerifyAdminToken("secret", "secret") {
		t.Error("matching tokens rejected")
	}
	if VerifyAdminToken("secret", "other") {
		t.Error("mismatched tokens accepted")
	}
	if VerifyAdminToken("", "") {
		t.Error("empty tokens accepted")
	}
}
