package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedTestData resets the database and populates it with demo users and a
// photo history shaped for memory discovery.
//
// Behavior:
//  1. Clears photos and users.
//  2. Creates 5 users with hashed passwords.
//  3. For each user, creates anniversary photos on today's month/day across
//     the previous 1..5 years, plus a dense recent 30-day range so reel
//     requests have enough material.
//
// Compatible with both MySQL and SQLite (AUTO_INCREMENT reset skipped for SQLite).
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{
		"memory_photos", "engagement_events", "memory_notifications",
		"memories", "flashback_reels", "photos", "users",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE photos AUTO_INCREMENT = 1")
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name IN ('photos', 'users')")
	}

	log.Println("Cleared existing data")

	now := time.Now().UTC()

	// --- Seed Users ---
	for i := 1; i <= 5; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		user := User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Active:       true,
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		// Anniversary photos: same month/day, previous years.
		for yearsBack := 1; yearsBack <= 5; yearsBack++ {
			taken := time.Date(now.Year()-yearsBack, now.Month(), now.Day(),
				12+r.Intn(8), r.Intn(60), 0, 0, time.UTC)
			photo := Photo{
				UserID:     user.ID,
				TakenAt:    &taken,
				Width:      3000 + r.Intn(3000),
				Height:     2000 + r.Intn(2000),
				AlbumCount: r.Intn(3),
				ShareCount: r.Intn(2),
			}
			if err := db.Create(&photo).Error; err != nil {
				return fmt.Errorf("failed to seed photo: %w", err)
			}
		}

		// Recent range for reel generation: one photo per day, last 30 days.
		for d := 0; d < 30; d++ {
			taken := now.AddDate(0, 0, -d)
			photo := Photo{
				UserID:     user.ID,
				TakenAt:    &taken,
				Width:      2000 + r.Intn(4000),
				Height:     1500 + r.Intn(3000),
				AlbumCount: r.Intn(2),
				ShareCount: 0,
			}
			if err := db.Create(&photo).Error; err != nil {
				return fmt.Errorf("failed to seed photo: %w", err)
			}
		}
	}
	log.Println("Seeded 5 users with anniversary and recent photos.")

	return nil
}
