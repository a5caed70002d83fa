package duck

import "strings"

const memoryPath = ":memory:"

type Config struct {
	Path string
}

// ToDBConnectionURI returns the DSN handed to the duckdb driver, an empty path opens an in-memory database.
func (c Config) ToDBConnectionURI() string {
	if strings.TrimSpace(c.Path) == "" {
		return ""
	}

	return c.Path
}

func (c Config) IsInMemory() bool {
	return c.ToDBConnectionURI() == "" || c.Path == memoryPath
}
