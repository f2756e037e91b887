package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/edu-project-tracker/pkg/config"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert course: %w", &pq.Error{Code: "23505", Constraint: "courses_code_key"})

	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsForeignKeyViolation(err))
	assert.Equal(t, "courses_code_key", Constraint(err))

	assert.False(t, IsUniqueViolation(errors.New("plain")))
	assert.Equal(t, "", Constraint(errors.New("plain")))
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "edu", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=edu sslmode=disable", dsn)
}
