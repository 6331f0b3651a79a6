package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestPaperKey returns the cache key for a test with its ordered questions
func (r *CacheKeyStruct) TestPaperKey(testID uuid.UUID) string {
	return fmt.Sprintf("test:%s:paper", testID)
}

// TestListKey returns the cache key for the public test listing
func (r *CacheKeyStruct) TestListKey() string {
	return "tests:list"
}

// AttemptResponsesKey returns the hash key mirroring an attempt's committed responses
func (r *CacheKeyStruct) AttemptResponsesKey(attemptID uuid.UUID) string {
	return fmt.Sprintf("attempt:%s:responses", attemptID)
}

var CacheKey = NewCacheKeyStruct()
