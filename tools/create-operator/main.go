package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/pdv-manager/internal/database"
	"github.com/yourusername/pdv-manager/internal/kvstore"
)

// Operator records are kept as raw maps so fields the host UI added are
// preserved when the slot is written back.
func main() {
	username := flag.String("username", "admin", "Username to create or reset")
	name := flag.String("name", "Administrador", "Display name for new operator")
	password := flag.String("password", "", "Password for the operator")
	dbPath := flag.String("db", "./data/pdv-manager.db", "Path to SQLite database")
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("PDV_ADMIN_PASSWORD")
	}
	if *password == "" {
		log.Fatal("Password is required (use -password or set PDV_ADMIN_PASSWORD)")
	}

	db, err := database.NewDB(*dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), 12)
	if err != nil {
		log.Fatal(err)
	}

	store := kvstore.NewSQLiteStore(db.DB)
	ctx := context.Background()

	users, err := loadUsers(ctx, store)
	if err != nil {
		log.Fatal(err)
	}

	for _, user := range users {
		existing, _ := user["username"].(string)
		if strings.EqualFold(existing, *username) {
			user["passwordHash"] = string(hash)
			user["role"] = "admin"
			user["active"] = true
			if err := saveUsers(ctx, store, users); err != nil {
				log.Fatal(err)
			}
			fmt.Printf("Password reset for operator %s.\n", *username)
			return
		}
	}

	users = append(users, map[string]interface{}{
		"id":           "user-" + uuid.New().String()[:8],
		"username":     *username,
		"name":         *name,
		"role":         "admin",
		"passwordHash": string(hash),
		"active":       true,
	})

	if err := saveUsers(ctx, store, users); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Admin operator created successfully!\n")
	fmt.Printf("Username: %s\n", *username)
	fmt.Printf("\nIMPORTANT: Change this password after first login!\n")
}

func loadUsers(ctx context.Context, store kvstore.Store) ([]map[string]interface{}, error) {
	value, ok, err := store.Get(ctx, "users")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var users []map[string]interface{}
	if err := json.Unmarshal(value, &users); err != nil {
		return nil, fmt.Errorf("users slot is not a valid operator list: %w", err)
	}
	return users, nil
}

func saveUsers(ctx context.Context, store kvstore.Store, users []map[string]interface{}) error {
	value, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return store.Set(ctx, "users", value)
}
