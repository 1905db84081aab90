package database

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"lyrix/internal/models"
)

func TestSeed_Idempotent(t *testing.T) {
	c, err := NewInMemory("seed_idempotent")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := c.Seed("admin", "secret"); err != nil {
			t.Fatalf("Seed run %d: %v", i, err)
		}
	}

	var songs, users int64
	c.DB.Model(&models.Song{}).Count(&songs)
	c.DB.Model(&models.Users{}).Count(&users)
	if songs != 2 || users != 1 {
		t.Fatalf("songs=%d users=%d, want 2 and 1", songs, users)
	}

	var song models.Song
	if err := c.DB.Preload("Lines").Where("title = ?", "Digital Dreams").First(&song).Error; err != nil {
		t.Fatal(err)
	}
	lines := song.SortedLines()
	if len(lines) != 4 || lines[2].HasTime() || lines[1].TimeMs != 5200 {
		t.Errorf("seeded lines = %+v", lines)
	}

	var admin models.Users
	c.DB.Where("username = ?", "admin").First(&admin)
	if admin.Role != "admin" {
		t.Errorf("role = %q", admin.Role)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("secret")) != nil {
		t.Error("admin password hash does not verify")
	}
}

func TestSeedAdmin_RequiresCredentials(t *testing.T) {
	c, err := NewInMemory("seed_admin_required")
	if err != nil {
		t.Fatal(err)
	}
	if err := SeedAdmin(c.DB, "admin", ""); err == nil {
		t.Fatal("expected error without password")
	}
}
