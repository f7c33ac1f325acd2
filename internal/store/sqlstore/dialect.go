package sqlstore

import "fmt"

// Dialect carries what differs between the supported SQL servers.
type Dialect struct {
	Name       string
	DriverName string
	// columnsQuery takes the table name as its only argument and yields
	// name/type pairs in ordinal order.
	columnsQuery string
}

var (
	MySQL = Dialect{
		Name:       "mysql",
		DriverName: "mysql",
		columnsQuery: `SELECT column_name AS name, column_type AS type
			FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ?
			ORDER BY ordinal_position`,
	}
	Postgres = Dialect{
		Name:       "postgres",
		DriverName: "pgx",
		columnsQuery: `SELECT column_name AS name, data_type AS type
			FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1
			ORDER BY ordinal_position`,
	}
)

func LookupDialect(name string) (Dialect, error) {
	switch name {
	case MySQL.Name:
		return MySQL, nil
	case Postgres.Name:
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql dialect %q", name)
	}
}
