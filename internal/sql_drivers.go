package internal

import (
	// Database drivers for the sql forwarder, registered by blank import.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)
