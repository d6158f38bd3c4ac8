package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizQuestionsKey returns the cache key for a quiz's ordered question list
func (r *CacheKeyStruct) QuizQuestionsKey(quizSlug string) string {
	return fmt.Sprintf("quiz:%s:questions", quizSlug)
}

// SessionChannel returns the Redis PubSub channel carrying session snapshots for an attempt
func (r *CacheKeyStruct) SessionChannel(attemptID int64) string {
	return fmt.Sprintf("quiz:attempt:%d:session", attemptID)
}

var CacheKey = NewCacheKeyStruct()
