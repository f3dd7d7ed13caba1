package tests

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/poolhouse-labs/stakewatch/internal/config"
)

func GetConfig() *config.Config {
	return config.NewConfig()
}

// GenerateTestDbName returns a unique, postgres-safe database name so test
// runs never collide.
func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("stakewatch_test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}
