package utils

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// SessionPrefix of session ids
	SessionPrefix = "sess"
	// InterviewPrefix of interview ids
	InterviewPrefix = "intv"
	// EvaluationPrefix of processing job ids
	EvaluationPrefix = "eval"
)

// NewID returns a random id in the form <prefix>_<random>
func NewID(prefix string) string {
	r := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	if prefix == "" {
		return r
	}
	return prefix + "_" + r
}
