// Command seed bootstraps a fresh database with an initial admin account
// and the default leave type catalogue. Safe to run repeatedly: every
// insert is guarded with ON CONFLICT DO NOTHING.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/imjasonkam/leave-sub000/pkg/config"
	"github.com/imjasonkam/leave-sub000/pkg/database"
)

type seedLeaveType struct {
	code    string
	name    string
	tracked bool
}

var defaultLeaveTypes = []seedLeaveType{
	{code: "ANNUAL", name: "Annual Leave", tracked: true},
	{code: "SICK", name: "Sick Leave", tracked: true},
	{code: "BIRTHDAY", name: "Birthday Leave", tracked: true},
	{code: "UNPAID", name: "Unpaid Leave", tracked: false},
	{code: "COMPASSIONATE", name: "Compassionate Leave", tracked: false},
}

func main() {
	var (
		adminEmail    string
		adminName     string
		adminPassword string
	)

	flag.StringVar(&adminEmail, "admin-email", "admin@example.com", "Bootstrap admin email")
	flag.StringVar(&adminName, "admin-name", "System Administrator", "Bootstrap admin display name")
	flag.StringVar(&adminPassword, "admin-password", "", "Bootstrap admin password (required)")
	flag.Parse()

	if adminPassword == "" {
		log.Fatal("-admin-password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := seedAdmin(db, adminEmail, adminName, adminPassword); err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	if err := seedLeaveTypes(db); err != nil {
		log.Fatalf("failed to seed leave types: %v", err)
	}

	log.Println("seed complete")
}

func seedAdmin(db *sqlx.DB, email, name, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := db.Exec(`INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, 'ADMIN', true, $5, $5)
ON CONFLICT (email) DO NOTHING`,
		uuid.New().String(), email, string(hash), name, now)
	if err != nil {
		return err
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		log.Printf("admin %s already exists, skipping", email)
	} else {
		log.Printf("created admin %s", email)
	}
	return nil
}

func seedLeaveTypes(db *sqlx.DB) error {
	now := time.Now().UTC()
	for _, lt := range defaultLeaveTypes {
		res, err := db.Exec(`INSERT INTO leave_types (id, code, name, tracked, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, true, $5, $5)
ON CONFLICT (code) DO NOTHING`,
			uuid.New().String(), lt.code, lt.name, lt.tracked, now)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows > 0 {
			log.Printf("created leave type %s", lt.code)
		}
	}
	return nil
}
