package database

import (
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lyrix/internal/models"
)

type seedSong struct {
	Title  string
	Artist string
	Lines  []models.LyricLine
}

func demoSongs() []seedSong {
	line := models.NewLyricLine
	return []seedSong{
		{
			Title:  "The Darkbox",
			Artist: "Synthwave Collective",
			Lines: []models.LyricLine{
				line("Lights go down in the darkbox", 0),
				line("Every shadow knows my name", 4200),
				line("Counting seconds on the ceiling", 8100),
				line("Waiting for the tape to play", 12500),
				line("Instrumental", 16800),
				line("Lights go down in the darkbox", 24000),
			},
		},
		{
			Title:  "Digital Dreams",
			Artist: "Synthwave Collective",
			Lines: []models.LyricLine{
				line("Static on the radio", 1500),
				line("Signals from a distant shore", 5200),
				line("We were made of digital dreams", models.UnsetTime),
				line("Nothing here is analog anymore", models.UnsetTime),
			},
		},
	}
}

// SeedSongs inserts the demo songs unless a song with the same title already exists.
func SeedSongs(db *gorm.DB) {
	songs := demoSongs()
	log.Printf("🌱 Seeding %d Songs...", len(songs))
	for _, s := range songs {
		var count int64
		db.Model(&models.Song{}).Where("title = ?", s.Title).Count(&count)
		if count > 0 {
			continue
		}
		for i := range s.Lines {
			s.Lines[i].Position = i
		}
		song := models.Song{Title: s.Title, Artist: s.Artist, Lines: s.Lines}
		if err := db.Create(&song).Error; err != nil {
			log.Printf("⚠️ Failed to seed %q: %v", s.Title, err)
		}
	}
}

// SeedAdmin makes sure an admin account exists. An existing user is left untouched.
func SeedAdmin(db *gorm.DB, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("seed admin: username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := models.Users{Username: username, PasswordHash: string(hash), Role: "admin"}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoNothing: true,
	}).Create(&user).Error
}

// Seed runs every seeder. Used by `lyrix -seed` and `lyrixctl seed`.
func (c *Client) Seed(adminUser, adminPassword string) error {
	SeedSongs(c.DB)
	if adminUser == "" || adminPassword == "" {
		log.Println("Info: no admin password configured, skipping admin user")
		return nil
	}
	log.Printf("🌱 Seeding admin user %q...", adminUser)
	return SeedAdmin(c.DB, adminUser, adminPassword)
}
