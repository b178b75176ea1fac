package migrations

import (
	"strings"
	"testing"
)

func TestNamesAreOrdered(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("Names() error: %v", err)
	}
	if len(names) < 2 || names[0] != "0001_init.sql" {
		t.Fatalf("unexpected migrations: %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("migrations out of order: %v", names)
		}
	}
}

func TestInitCreatesCoreTables(t *testing.T) {
	body, err := files.ReadFile("0001_init.sql")
	if err != nil {
		t.Fatalf("read init: %v", err)
	}
	for _, table := range []string{"profiles", "jobs", "billing_events"} {
		if !strings.Contains(string(body), "create table if not exists "+table+" ") {
			t.Fatalf("init migration does not create %s", table)
		}
	}
	if !strings.Contains(string(body), "check (credits >= 0)") {
		t.Fatalf("credits must never go negative")
	}
}
