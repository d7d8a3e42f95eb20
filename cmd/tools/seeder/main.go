package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

// Seeds a development database with the standing menu, the launch coupon and
// a marketing offer. Safe to run repeatedly.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close(ctx)

	seedMenu(ctx, conn)
	seedCoupons(ctx, conn)
	seedOffers(ctx, conn)

	log.Println("Seeding completed successfully!")
}

type seedItem struct {
	title       string
	category    string
	description string
	halfMinor   *int64
	fullMinor   int64
	signature   bool
}

func minor(v int64) *int64 { return &v }

func seedMenu(ctx context.Context, conn *pgx.Conn) {
	items := []seedItem{
		{"Chicken Matka Biryani", "Matka Biryanis", "Slow-cooked in a sealed clay matka", minor(18000), 25000, true},
		{"Mutton Matka Biryani", "Matka Biryanis", "House special with raan cuts", minor(22000), 32000, true},
		{"Veg Matka Biryani", "Matka Biryanis", "Seasonal vegetables, saffron rice", minor(14000), 20000, false},
		{"Seekh Kebab", "Kebabs", "Charcoal-grilled minced mutton skewers", nil, 10000, false},
		{"Chicken Malai Tikka", "Kebabs", "Cream-marinated tikka, smoked finish", nil, 12000, false},
		{"Chicken Kathi Roll", "Rolls", "Double egg paratha roll", nil, 9000, false},
		{"Mutton Seekh Roll", "Rolls", "Seekh kebab wrapped in rumali", nil, 11000, false},
		{"Biryani + Kebab Combo", "Combos", "Half chicken matka with two seekh skewers", nil, 29000, false},
		{"Gulab Jamun (2 pc)", "Add-ons & Drinks", "", nil, 6000, false},
		{"Masala Chaas", "Add-ons & Drinks", "", nil, 4000, false},
	}
	for _, it := range items {
		_, err := conn.Exec(ctx, `
			INSERT INTO menu_items (title, category, description, image_url, price_half_minor, price_full_minor, is_signature, available)
			SELECT $1, $2, NULLIF($3, ''), NULL, $4, $5, $6, TRUE
			WHERE NOT EXISTS (SELECT 1 FROM menu_items WHERE title = $1)
		`, it.title, it.category, it.description, it.halfMinor, it.fullMinor, it.signature)
		if err != nil {
			log.Fatalf("Failed to seed menu item %q: %v", it.title, err)
		}
	}
	log.Printf("Seeded %d menu items", len(items))
}

func seedCoupons(ctx context.Context, conn *pgx.Conn) {
	// 15% off above 499; percent value stored in minor units (15.00 -> 1500).
	_, err := conn.Exec(ctx, `
		INSERT INTO coupons (code, description, kind, value_minor, min_order_minor, active)
		VALUES ('PAKKTUN15', '15% off on orders above Rs. 499', 'percent', 1500, 49900, TRUE)
		ON CONFLICT (code) DO NOTHING
	`)
	if err != nil {
		log.Fatalf("Failed to seed coupons: %v", err)
	}
	log.Println("Seeded launch coupon PAKKTUN15")
}

func seedOffers(ctx context.Context, conn *pgx.Conn) {
	_, err := conn.Exec(ctx, `
		INSERT INTO offers (title, description, banner_url, active)
		SELECT 'Launch Week', 'Flat 15% off with PAKKTUN15 on orders above Rs. 499', NULL, TRUE
		WHERE NOT EXISTS (SELECT 1 FROM offers WHERE title = 'Launch Week')
	`)
	if err != nil {
		log.Fatalf("Failed to seed offers: %v", err)
	}
	log.Println("Seeded launch offer")
}
