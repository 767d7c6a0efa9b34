package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gebeya-market/gebeya-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	n, err := migrate.ValidateDir("migrations")
	if err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
	if n < 7 {
		t.Fatalf("expected at least 7 migrations, got %d", n)
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_orders"), []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS order_line_items",
		"CREATE TABLE IF NOT EXISTS order_status_events",
		"CHECK (status IN ('pending', 'confirmed', 'shipped', 'completed', 'cancelled'))",
		"CHECK (quantity >= 1)",
		"FOREIGN KEY (order_id) REFERENCES orders(id)",
		"DROP TABLE IF EXISTS orders",
	})
}

func TestPaymentLedgerMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_payment_ledger"), []string{
		"CREATE TABLE IF NOT EXISTS payment_events",
		"CREATE TABLE IF NOT EXISTS settlements",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_settlements_order",
		"'initiated', 'authorized', 'captured', 'settled', 'refunded', 'failed'",
	})
}

func TestReviewsMigrationEnforcesOneReviewPerTarget(t *testing.T) {
	assertContains(t, readMigration(t, "create_reviews"), []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_reviews_author_target ON reviews (author_id, target_type, target_id)",
		"CHECK (rating BETWEEN 1 AND 5)",
		"char_length(comment) <= 500",
	})
}

func TestPayoutMethodsMigrationRequiresTypeFields(t *testing.T) {
	assertContains(t, readMigration(t, "create_payout_methods"), []string{
		"CREATE TABLE IF NOT EXISTS payout_methods",
		"CONSTRAINT chk_payout_methods_bank",
		"CONSTRAINT chk_payout_methods_mobile",
		"deleted_at TIMESTAMPTZ",
	})
}
