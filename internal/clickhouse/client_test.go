package clickhouse

import (
	"strings"
	"testing"
)

func TestDestinationStat(t *testing.T) {
	tests := []struct {
		name      string
		countryID int
		want      string
	}{
		{"known country", 4, "Турция"},
		{"unknown country", 999, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := destinationStat(tt.countryID, 10, 120000)
			if s.Country != tt.want || s.Searches != 10 || s.CountryID != tt.countryID {
				t.Errorf("stat = %+v", s)
			}
		})
	}
}

func TestTableDDL(t *testing.T) {
	for _, table := range []string{"search_events", "inventory_changelog", "leads"} {
		found := false
		for _, ddl := range tableDDL {
			if strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+table+" (") {
				found = true
			}
		}
		if !found {
			t.Errorf("no DDL for %s", table)
		}
	}
}
