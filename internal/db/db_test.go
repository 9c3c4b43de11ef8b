package db

import (
	"testing"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		host     string
		port     int
		database string
		want     string
	}{
		{
			name:     "default local",
			user:     "root",
			host:     "127.0.0.1",
			port:     3306,
			database: "crewdeck",
			want:     "root@tcp(127.0.0.1:3306)/crewdeck?parseTime=true",
		},
		{
			name:     "with password",
			user:     "crewdeck",
			password: "hunter2",
			host:     "db.vpc.internal",
			port:     3306,
			database: "crewdeck_prod",
			want:     "crewdeck:hunter2@tcp(db.vpc.internal:3306)/crewdeck_prod?parseTime=true",
		},
		{
			name:     "custom port",
			user:     "root",
			host:     "10.0.0.5",
			port:     3307,
			database: "crewdeck_staging",
			want:     "root@tcp(10.0.0.5:3307)/crewdeck_staging?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.user, tt.password, tt.host, tt.port, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAutoMigrate_InMemory(t *testing.T) {
	gdb, err := ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("ConnectSQLite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("missing table for %T", m)
		}
	}
}
